package research

import (
	"fmt"
	"strings"
)

// Compile assembles the report in plan order. Each planned section with
// non-blank completed content becomes a heading followed by its content;
// planned sections without content are left out.
func Compile(plan, completed []Section) (string, error) {
	var parts []string
	for _, planned := range plan {
		done, ok := FindSection(completed, planned.Name)
		if !ok || !done.HasContent() {
			continue
		}
		parts = append(parts, fmt.Sprintf("# %s\n\n%s", planned.Name, strings.TrimSpace(done.Content)))
	}

	report := strings.Join(parts, "\n\n")
	if strings.TrimSpace(report) == "" {
		return "", ErrEmptyReport
	}
	return report, nil
}
