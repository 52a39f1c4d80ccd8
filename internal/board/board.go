package board

import (
	"strings"

	"github.com/jmehdipour/leadsync/internal/model"
)

type Column struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	SettingsStr string `json:"settings_str"`
}

type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ColumnValue struct {
	ID    string           `json:"id"`
	Text  model.FlexString `json:"text"`
	Value model.FlexString `json:"value"`
}

type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Group        *Group        `json:"group"`
	ColumnValues []ColumnValue `json:"column_values"`
}

// Text returns the display text of a column, "" when absent.
func (it Item) Text(columnID string) string {
	if columnID == "" {
		return ""
	}
	for _, cv := range it.ColumnValues {
		if cv.ID == columnID {
			return cv.Text.String()
		}
	}
	return ""
}

func (it Item) GroupTitle() string {
	if it.Group == nil {
		return ""
	}
	return it.Group.Title
}

type Board struct {
	ID      string
	Columns []Column
	Items   []Item
}

// Column finds a column by its exact title.
func (b *Board) Column(title string) *Column {
	for i := range b.Columns {
		if b.Columns[i].Title == title {
			return &b.Columns[i]
		}
	}
	return nil
}

// ColumnFold matches the title trimmed and case-insensitively.
func (b *Board) ColumnFold(title string) *Column {
	for i := range b.Columns {
		if strings.EqualFold(strings.TrimSpace(b.Columns[i].Title), title) {
			return &b.Columns[i]
		}
	}
	return nil
}

// ColumnContaining returns the first column whose lowercased title contains
// sub.
func (b *Board) ColumnContaining(sub string) *Column {
	sub = strings.ToLower(sub)
	for i := range b.Columns {
		if strings.Contains(strings.ToLower(b.Columns[i].Title), sub) {
			return &b.Columns[i]
		}
	}
	return nil
}

// ColumnID is Column(title).ID, "" when missing.
func (b *Board) ColumnID(title string) string {
	if c := b.Column(title); c != nil {
		return c.ID
	}
	return ""
}

// ItemsBy indexes items by the text of one column, skipping blanks. A later
// item with the same key wins.
func (b *Board) ItemsBy(columnID string) map[string]Item {
	out := make(map[string]Item, len(b.Items))
	for _, it := range b.Items {
		if k := strings.TrimSpace(it.Text(columnID)); k != "" {
			out[k] = it
		}
	}
	return out
}
