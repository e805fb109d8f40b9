package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"todovault/internal/client"
	"todovault/internal/models"
)

func newTestStore(t *testing.T) *client.LocalStore {
	t.Helper()
	store, err := client.NewLocalStore(filepath.Join(t.TempDir(), "todos.json"))
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func newTestApp(t *testing.T) App {
	t.Helper()
	store := newTestStore(t)
	session := client.NewSession("http://localhost:0", &client.MemoryTokenStore{})
	factory := func(authenticated bool) (client.TodoStore, error) {
		return store, nil
	}
	return NewApp(session, store, factory)
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	app := newTestApp(t)

	if app.activeView != viewTodos {
		t.Fatal("default view should be todos")
	}
	if app.showHelp {
		t.Fatal("help should be hidden by default")
	}
	if app.isInputActive() {
		t.Fatal("no input should be active initially")
	}
}

func TestAppLoadingState(t *testing.T) {
	app := newTestApp(t)
	// Width 0 means not yet sized
	if output := app.View(); output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppViewStates(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	for _, v := range []viewState{viewTodos, viewStats, viewAccount} {
		app.activeView = v
		if output := app.View(); output == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppFooterShowsGuestMode(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	app.height = 40

	if footer := app.renderFooter(); !strings.Contains(footer, "guest") {
		t.Fatal("footer should indicate guest mode when anonymous")
	}
}

// ============================================================
// Todos model
// ============================================================

func seedTodos(t *testing.T, store *client.LocalStore) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Add(ctx, models.TodoCreateRequest{Content: "buy milk", Label: "Shopping"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, models.TodoCreateRequest{Content: "write report", Label: "Work"}); err != nil {
		t.Fatal(err)
	}
}

func TestTodosRefreshLoadsData(t *testing.T) {
	store := newTestStore(t)
	seedTodos(t, store)

	m := newTodosModel(store)
	msg := m.refresh()()
	data, ok := msg.(todosDataMsg)
	if !ok {
		t.Fatalf("expected todosDataMsg, got %T", msg)
	}
	if len(data.todos) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(data.todos))
	}
	if len(data.labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(data.labels))
	}

	m, _ = m.update(data)
	if len(m.visible) != 2 {
		t.Fatalf("expected 2 visible todos, got %d", len(m.visible))
	}
}

func TestTodosSearchNarrowsVisible(t *testing.T) {
	store := newTestStore(t)
	seedTodos(t, store)

	m := newTodosModel(store)
	msg := m.refresh()()
	m, _ = m.update(msg)

	m.searchInput.SetValue("milk")
	m.applyFilter()
	if len(m.visible) != 1 {
		t.Fatalf("expected 1 visible todo, got %d", len(m.visible))
	}
	if m.visible[0].Content != "buy milk" {
		t.Fatalf("unexpected todo %q", m.visible[0].Content)
	}
}

func TestTodosLabelFilterCycles(t *testing.T) {
	store := newTestStore(t)
	seedTodos(t, store)

	m := newTodosModel(store)
	msg := m.refresh()()
	m, _ = m.update(msg)

	if m.labelIdx != -1 {
		t.Fatal("label filter should start on all labels")
	}

	m.labelIdx = 0
	m.applyFilter()
	if len(m.visible) != 1 {
		t.Fatalf("expected 1 visible todo for single label, got %d", len(m.visible))
	}
}

func TestTodosViewRendersItems(t *testing.T) {
	store := newTestStore(t)
	seedTodos(t, store)

	m := newTodosModel(store)
	m.setSize(120, 40)
	msg := m.refresh()()
	m, _ = m.update(msg)

	out := m.view()
	if !strings.Contains(out, "buy milk") || !strings.Contains(out, "write report") {
		t.Fatal("view should contain seeded todos")
	}
}

func TestParseDue(t *testing.T) {
	if due, ok := parseDue(""); !ok || due != nil {
		t.Fatal("empty input should parse to nil due date")
	}
	due, ok := parseDue("2026-09-01")
	if !ok || due == nil {
		t.Fatal("valid date should parse")
	}
	if !due.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date %v", due)
	}
	if _, ok := parseDue("not-a-date"); ok {
		t.Fatal("garbage input should fail")
	}
}

// ============================================================
// Stats model
// ============================================================

func TestStatsRefreshAndView(t *testing.T) {
	store := newTestStore(t)
	seedTodos(t, store)

	m := newStatsModel(store)
	m.setSize(120, 40)

	msg := m.refresh()()
	data, ok := msg.(statsDataMsg)
	if !ok {
		t.Fatalf("expected statsDataMsg, got %T", msg)
	}
	m, _ = m.update(data)

	out := m.view()
	if !strings.Contains(out, "Total") || !strings.Contains(out, "Completion rate") {
		t.Fatal("stats view missing expected rows")
	}
}

func TestBar(t *testing.T) {
	if got := bar(0, 0, 4); got != "░░░░" {
		t.Fatalf("empty total should render empty bar, got %q", got)
	}
	if got := bar(2, 4, 4); got != "██░░" {
		t.Fatalf("half bar wrong: %q", got)
	}
	if got := bar(4, 4, 4); got != "████" {
		t.Fatalf("full bar wrong: %q", got)
	}
}

// ============================================================
// Account model
// ============================================================

func TestAccountMenuDependsOnSessionState(t *testing.T) {
	session := client.NewSession("http://localhost:0", &client.MemoryTokenStore{})
	m := newAccountModel(session)

	items := m.menuItems()
	if len(items) != 2 {
		t.Fatalf("anonymous menu should have 2 items, got %d", len(items))
	}
	if items[0] != "Sign in" || items[1] != "Create account" {
		t.Fatalf("unexpected menu %v", items)
	}
}

func TestAccountViewShowsGuestHint(t *testing.T) {
	session := client.NewSession("http://localhost:0", &client.MemoryTokenStore{})
	m := newAccountModel(session)
	m.setSize(120, 40)

	if out := m.view(); !strings.Contains(out, "Guest mode") {
		t.Fatal("account view should mention guest mode when anonymous")
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}
