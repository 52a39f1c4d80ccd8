package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/upstream"
)

var ErrBoardNotFound = errors.New("board: not found")

type Opts struct {
	URL      string
	Token    string
	PageSize int // default 500
	Timeout  time.Duration
	Breaker  *upstream.Breaker
}

// Client is a GraphQL client for the work-management board API.
type Client struct {
	c        *upstream.Client
	pageSize int
}

func New(opts Opts) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	return &Client{
		c: upstream.New(upstream.Opts{
			Name:    "board",
			BaseURL: opts.URL,
			Timeout: opts.Timeout,
			Headers: map[string]string{"Authorization": opts.Token},
			Breaker: opts.Breaker,
		}),
		pageSize: opts.PageSize,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

// GraphQLError carries the errors array of a 200 response.
type GraphQLError struct {
	Errors []gqlError
}

func (e *GraphQLError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, m := range e.Errors {
		msgs[i] = m.Message
	}
	return "board graphql: " + strings.Join(msgs, "; ")
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := c.c.PostJSON(ctx, "", gqlRequest{Query: query, Variables: vars}, &env); err != nil {
		return err
	}
	if len(env.Errors) > 0 {
		return &GraphQLError{Errors: env.Errors}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("board graphql: decode data: %w", err)
	}
	return nil
}

const boardStateQuery = `
query ($boardId: [ID!], $limit: Int!, $cursor: String) {
  boards(ids: $boardId) {
    columns { id title type settings_str }
    items_page(limit: $limit, cursor: $cursor) {
      cursor
      items {
        id
        name
        group { id title }
        column_values { id text value }
      }
    }
  }
}`

type boardsPage struct {
	Boards []struct {
		Columns   []Column `json:"columns"`
		ItemsPage struct {
			Cursor *string `json:"cursor"`
			Items  []Item  `json:"items"`
		} `json:"items_page"`
	} `json:"boards"`
}

// BoardState reads the columns and every item of a board, following the
// page cursor until it runs out.
func (c *Client) BoardState(ctx context.Context, boardID string) (*Board, error) {
	b := &Board{ID: boardID}
	var cursor *string
	for {
		vars := map[string]any{"boardId": []string{boardID}, "limit": c.pageSize, "cursor": cursor}
		var page boardsPage
		if err := c.do(ctx, boardStateQuery, vars, &page); err != nil {
			return nil, fmt.Errorf("board %s: %w", boardID, err)
		}
		if len(page.Boards) == 0 {
			return nil, fmt.Errorf("board %s: %w", boardID, ErrBoardNotFound)
		}
		bp := page.Boards[0]
		b.Columns = bp.Columns
		b.Items = append(b.Items, bp.ItemsPage.Items...)

		cursor = bp.ItemsPage.Cursor
		if cursor == nil || *cursor == "" {
			return b, nil
		}
	}
}

const createItemMutation = `
mutation ($boardId: ID!, $itemName: String!, $columnValues: JSON!) {
  create_item(board_id: $boardId, item_name: $itemName, column_values: $columnValues) { id }
}`

// CreateItem adds an item and returns its id. values maps column id to the
// column's JSON value.
func (c *Client) CreateItem(ctx context.Context, boardID, name string, values map[string]any) (string, error) {
	cv, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode column values: %w", err)
	}
	var out struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	vars := map[string]any{"boardId": boardID, "itemName": name, "columnValues": string(cv)}
	if err := c.do(ctx, createItemMutation, vars, &out); err != nil {
		return "", fmt.Errorf("create item on %s: %w", boardID, err)
	}
	return out.CreateItem.ID, nil
}

const changeValuesMutation = `
mutation ($boardId: ID!, $itemId: ID!, $columnValues: JSON!) {
  change_multiple_column_values(board_id: $boardId, item_id: $itemId, column_values: $columnValues) { id }
}`

func (c *Client) ChangeColumnValues(ctx context.Context, boardID, itemID string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	cv, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode column values: %w", err)
	}
	vars := map[string]any{"boardId": boardID, "itemId": itemID, "columnValues": string(cv)}
	if err := c.do(ctx, changeValuesMutation, vars, nil); err != nil {
		return fmt.Errorf("change item %s: %w", itemID, err)
	}
	return nil
}

const changeValueMutation = `
mutation ($boardId: ID!, $itemId: ID!, $columnId: String!, $value: JSON!) {
  change_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
}`

// ChangeColumnValue sets one simple column. The API wants the value as a
// JSON-encoded string.
func (c *Client) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	enc, err := json.Marshal(value)
	if err != nil {
		return err
	}
	vars := map[string]any{"boardId": boardID, "itemId": itemID, "columnId": columnID, "value": string(enc)}
	if err := c.do(ctx, changeValueMutation, vars, nil); err != nil {
		return fmt.Errorf("change item %s column %s: %w", itemID, columnID, err)
	}
	return nil
}
