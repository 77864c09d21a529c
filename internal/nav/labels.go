package nav

import (
	"sort"
	"strings"

	"g2gmail/internal/model"
)

// systemLabels lists the recognized system labels in display order.
var systemLabels = []struct {
	ID   string
	Name string
}{
	{"INBOX", "Inbox"},
	{"STARRED", "Starred"},
	{"IMPORTANT", "Important"},
	{"SENT", "Sent"},
	{"DRAFT", "Drafts"},
	{"SPAM", "Spam"},
	{"TRASH", "Trash"},
}

// SystemLabelName returns the friendly name for a recognized system label id.
func SystemLabelName(id string) (string, bool) {
	for _, s := range systemLabels {
		if s.ID == id {
			return s.Name, true
		}
	}
	return "", false
}

// SortLabels returns the displayable labels: recognized system labels first
// in canonical order with their friendly names, then user labels sorted by
// name. Anything else is dropped.
func SortLabels(labels []model.Label) []model.Label {
	byID := make(map[string]model.Label, len(labels))
	var user []model.Label
	for _, l := range labels {
		if _, ok := SystemLabelName(l.ID); ok {
			if _, dup := byID[l.ID]; !dup {
				byID[l.ID] = l
			}
			continue
		}
		if l.Type == model.LabelTypeUser {
			user = append(user, l)
		}
	}

	out := make([]model.Label, 0, len(byID)+len(user))
	for _, s := range systemLabels {
		l, ok := byID[s.ID]
		if !ok {
			continue
		}
		l.Name = s.Name
		l.Type = model.LabelTypeSystem
		out = append(out, l)
	}

	sort.SliceStable(user, func(i, j int) bool {
		a, b := strings.ToLower(user[i].Name), strings.ToLower(user[j].Name)
		if a == b {
			return user[i].Name < user[j].Name
		}
		return a < b
	})
	return append(out, user...)
}
