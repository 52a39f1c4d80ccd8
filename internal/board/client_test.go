package board

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

type gqlCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func graphQLServer(t *testing.T, handle func(call gqlCall) string) (*httptest.Server, *[]gqlCall) {
	t.Helper()
	var calls []gqlCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var call gqlCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode request: %v", err)
		}
		calls = append(calls, call)
		_, _ = w.Write([]byte(handle(call)))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestBoardStateFollowsCursor(t *testing.T) {
	srv, calls := graphQLServer(t, func(call gqlCall) string {
		if call.Variables["cursor"] == nil {
			return `{"data":{"boards":[{"columns":[{"id":"c1","title":"CRM Login","type":"text","settings_str":"{}"}],
				"items_page":{"cursor":"next","items":[{"id":"1","name":"Ann","group":{"id":"g","title":"New"},"column_values":[{"id":"c1","text":"101","value":null}]}]}}]}}`
		}
		return `{"data":{"boards":[{"columns":[{"id":"c1","title":"CRM Login","type":"text","settings_str":"{}"}],
			"items_page":{"cursor":null,"items":[{"id":"2","name":"Bo","group":null,"column_values":[{"id":"c1","text":null,"value":null}]}]}}]}}`
	})

	b, err := New(Opts{URL: srv.URL, Token: "tok", PageSize: 1}).BoardState(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(*calls))
	}
	if got := (*calls)[1].Variables["cursor"]; got != "next" {
		t.Errorf("second cursor = %v, want next", got)
	}
	if lim := (*calls)[0].Variables["limit"]; lim != float64(1) {
		t.Errorf("limit = %v, want 1", lim)
	}
	if len(b.Items) != 2 || b.Items[0].Text("c1") != "101" || b.Items[1].Text("c1") != "" {
		t.Errorf("items = %+v", b.Items)
	}
	if b.Items[0].GroupTitle() != "New" || b.Items[1].GroupTitle() != "" {
		t.Error("group titles not decoded")
	}
	if b.ColumnID("CRM Login") != "c1" || b.ColumnFold(" crm login ") == nil {
		t.Error("column lookup failed")
	}
	if idx := b.ItemsBy("c1"); len(idx) != 1 || idx["101"].ID != "1" {
		t.Errorf("ItemsBy() = %+v", idx)
	}
}

func TestBoardStateMissingBoard(t *testing.T) {
	srv, _ := graphQLServer(t, func(gqlCall) string { return `{"data":{"boards":[]}}` })
	_, err := New(Opts{URL: srv.URL, Token: "tok"}).BoardState(context.Background(), "1")
	if !errors.Is(err, ErrBoardNotFound) {
		t.Errorf("error = %v, want ErrBoardNotFound", err)
	}
}

func TestGraphQLErrors(t *testing.T) {
	srv, _ := graphQLServer(t, func(gqlCall) string {
		return `{"errors":[{"message":"column not found"}],"data":null}`
	})
	err := New(Opts{URL: srv.URL, Token: "tok"}).ChangeColumnValues(context.Background(), "1", "2", map[string]any{"x": 1})
	var gerr *GraphQLError
	if !errors.As(err, &gerr) || gerr.Errors[0].Message != "column not found" {
		t.Errorf("error = %v, want GraphQLError", err)
	}
}

func TestMutationsEncodeValues(t *testing.T) {
	srv, calls := graphQLServer(t, func(gqlCall) string {
		return `{"data":{"create_item":{"id":"99"}}}`
	})
	c := New(Opts{URL: srv.URL, Token: "tok"})
	ctx := context.Background()

	id, err := c.CreateItem(ctx, "7", "Ann", map[string]any{"email": map[string]string{"email": "a@b.c", "text": "a@b.c"}})
	if err != nil || id != "99" {
		t.Fatalf("CreateItem() = (%q, %v)", id, err)
	}
	if err := c.ChangeColumnValue(ctx, "7", "99", "num", "12.5"); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeColumnValues(ctx, "7", "99", nil); err != nil {
		t.Fatal(err)
	}

	if len(*calls) != 2 {
		t.Fatalf("calls = %d, want 2 (empty change is skipped)", len(*calls))
	}
	if cv := (*calls)[0].Variables["columnValues"]; cv != `{"email":{"email":"a@b.c","text":"a@b.c"}}` {
		t.Errorf("columnValues = %v", cv)
	}
	if v := (*calls)[1].Variables["value"]; v != `"12.5"` {
		t.Errorf("value = %v, want JSON string", v)
	}
}
