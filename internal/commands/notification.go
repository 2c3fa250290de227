package commands

import "strings"

// NotificationType says whether a file needs building or its output
// removing.
type NotificationType int

const (
	BuildNotification NotificationType = iota
	CleanNotification
)

// String returns the string representation of the NotificationType
func (t NotificationType) String() string {
	if t == CleanNotification {
		return "clean"
	}
	return "build"
}

// FileNotification is one file change. Two notifications are equal when
// their types match and their file names match ignoring case.
type FileNotification struct {
	Type     NotificationType
	FileName string
}

// Key is equal for equal notifications
func (n FileNotification) Key() string {
	return n.Type.String() + "|" + strings.ToLower(n.FileName)
}

// Equal reports whether n and other describe the same change.
func (n FileNotification) Equal(other FileNotification) bool {
	return n.Type == other.Type && strings.EqualFold(n.FileName, other.FileName)
}

// Dedupe removes repeated notifications, keeping the first of each.
func Dedupe(notes []FileNotification) []FileNotification {
	seen := make(map[string]struct{}, len(notes))
	result := make([]FileNotification, 0, len(notes))
	for _, n := range notes {
		key := n.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, n)
	}
	return result
}
