package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
)

// buildPrompt assembles the directive one task run hands to the reasoning
// worker. The same prompt is reused on every loop iteration, so it has to
// be safe to follow twice: the plan directive is what makes a re-run pick
// up where the last one stopped instead of redoing finished steps.
func (c *Controller) buildPrompt(ctx context.Context, task *domain.Task) (string, error) {
	hasPlan, err := c.vault.HasPlan(ctx, task.ID)
	if err != nil {
		return "", err
	}
	planRef := fmt.Sprintf("%s/%s_plan.md", constants.StagePlan, task.ID)

	var b strings.Builder

	fmt.Fprintf(&b, "You are an operations agent working inside the vault at %s.\n", c.vault.Root())
	fmt.Fprintf(&b, "Your current task file is %s.\n\n", task.Path)

	b.WriteString("## Task\n\n")
	b.WriteString(strings.TrimRight(task.Content, "\n"))
	b.WriteString("\n\n## Plan\n\n")

	if hasPlan {
		fmt.Fprintf(&b, "An execution plan already exists at %s. Read it, find the first unfinished step and continue from there. Do not write a new plan and do not redo completed steps.\n", planRef)
	} else {
		fmt.Fprintf(&b, "Before doing anything else, write a short numbered execution plan to %s. Mark each step done in that file as you complete it, then work through the steps in order.\n", planRef)
	}

	b.WriteString("\n## Rules\n\n")
	fmt.Fprintf(&b, "1. Never send email, messages or social posts yourself. Write any outbound or irreversible action as a draft file in the %s folder, then stop working on this task. A human reviews that folder.\n", constants.StagePendingApproval)
	fmt.Fprintf(&b, "2. If you finish the task completely, move the task file to the %s folder.\n", constants.StageDone)
	fmt.Fprintf(&b, "3. When everything is done, print %s as the last line of your output. Print it only when the task is truly complete.\n", constants.CompletionMarker)

	if docs := c.vault.AvailableContextDocs(ctx); len(docs) > 0 {
		fmt.Fprintf(&b, "4. Consult the context documents in the vault root before acting: %s.\n", strings.Join(docs, ", "))
	}

	return b.String(), nil
}
