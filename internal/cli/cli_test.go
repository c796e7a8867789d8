package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService is an in-memory stand-in for the collection service, serving
// just enough of the cart and wishlist API for command tests.
type fakeService struct {
	mu      sync.Mutex
	cart    map[string]int
	wish    map[string]bool
	catalog map[string]fakeProduct
}

type fakeProduct struct {
	Name   string
	Price  float64
	Stock  int
	Vendor string
}

func newFakeService() *fakeService {
	return &fakeService{
		cart: map[string]int{},
		wish: map[string]bool{},
		catalog: map[string]fakeProduct{
			"p1": {Name: "Hoodie", Price: 899, Stock: 5, Vendor: "Threads"},
			"p2": {Name: "Tumbler", Price: 350, Stock: 9, Vendor: "Hydro"},
			"p3": {Name: "Cap", Price: 250, Stock: 3, Vendor: "Threads"},
		},
	}
}

func (s *fakeService) entry(id string, qty int) map[string]any {
	p := s.catalog[id]
	return map[string]any{
		"itemId":    "srv-" + id,
		"productId": id,
		"quantity":  qty,
		"product": map[string]any{
			"id":     id,
			"name":   p.Name,
			"price":  p.Price,
			"stock":  p.Stock,
			"vendor": p.Vendor,
		},
	}
}

func (s *fakeService) cartEntries() []map[string]any {
	out := []map[string]any{}
	for _, id := range []string{"p1", "p2", "p3"} {
		if qty, ok := s.cart[id]; ok {
			out = append(out, s.entry(id, qty))
		}
	}
	return out
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	decodeBody := func() map[string]any {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		return body
	}

	path, method := r.URL.Path, r.Method
	switch {
	case path == "/cart" && method == http.MethodGet:
		writeJSON(map[string]any{"items": s.cartEntries()})
	case path == "/cart" && method == http.MethodPost:
		body := decodeBody()
		id, _ := body["productId"].(string)
		qty := int(body["quantity"].(float64))
		s.cart[id] += qty
		writeJSON(map[string]any{"items": s.cartEntries()})
	case path == "/cart" && method == http.MethodDelete:
		s.cart = map[string]int{}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(path, "/cart/summary"):
		total, units, subtotal := 0, 0, 0.0
		for id, qty := range s.cart {
			total++
			units += qty
			subtotal += s.catalog[id].Price * float64(qty)
		}
		writeJSON(map[string]any{"totalItems": total, "totalQuantity": units, "subtotal": subtotal})
	case strings.HasPrefix(path, "/cart/grouped"):
		byVendor := map[string][]map[string]any{}
		for id, qty := range s.cart {
			v := s.catalog[id].Vendor
			byVendor[v] = append(byVendor[v], s.entry(id, qty))
		}
		groups := []map[string]any{}
		for _, v := range []string{"Threads", "Hydro"} {
			if items, ok := byVendor[v]; ok {
				groups = append(groups, map[string]any{"vendor": v, "items": items})
			}
		}
		writeJSON(map[string]any{"groups": groups})
	case strings.HasPrefix(path, "/cart/") && method == http.MethodPut:
		id := strings.TrimPrefix(path, "/cart/")
		body := decodeBody()
		s.cart[id] = int(body["quantity"].(float64))
		writeJSON(map[string]any{"items": s.cartEntries()})
	case strings.HasPrefix(path, "/cart/") && method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/cart/")
		delete(s.cart, id)
		w.WriteHeader(http.StatusNoContent)
	case path == "/wishlist" && method == http.MethodGet:
		out := []map[string]any{}
		for id := range s.wish {
			out = append(out, s.entry(id, 1))
		}
		writeJSON(map[string]any{"products": out})
	case path == "/wishlist" && method == http.MethodPost:
		body := decodeBody()
		id, _ := body["productId"].(string)
		if s.wish[id] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		s.wish[id] = true
		writeJSON(map[string]any{"products": []map[string]any{s.entry(id, 1)}})
	case strings.HasPrefix(path, "/wishlist/check/"):
		id := strings.TrimPrefix(path, "/wishlist/check/")
		writeJSON(map[string]bool{"inWishlist": s.wish[id]})
	case strings.HasPrefix(path, "/wishlist/") && method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/wishlist/")
		delete(s.wish, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

// env holds one test's service and config file, shared across invocations so
// selection state persists between commands.
type env struct {
	svc        *fakeService
	server     *httptest.Server
	configPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	svc := newFakeService()
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("base_url: %s\nselection_db: %s\n",
		server.URL, filepath.Join(dir, "animomart.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	return &env{svc: svc, server: server, configPath: configPath}
}

// run executes one command invocation against the env.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "--format", "xml", "cart", "list")
	require.ErrorContains(t, err, "invalid format")
}

func TestCartList_Empty(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "cart is empty")
}

func TestCartAdd_ThenList(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "cart", "add", "p1", "--qty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Hoodie")
	assert.Contains(t, out, "x2")
	assert.Equal(t, 2, e.svc.cart["p1"])
}

func TestCartSet_DispatchesImmediately(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1

	out, err := e.run(t, "cart", "set", "p1", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "x4")
	assert.Equal(t, 4, e.svc.cart["p1"])
}

func TestCartSet_RejectsAboveStock(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p3"] = 1 // stock 3

	out, err := e.run(t, "cart", "set", "p3", "7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "exceeds available stock")
	assert.Equal(t, 1, e.svc.cart["p3"], "no remote call on local rejection")
}

func TestCartRm_RemovesItems(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1
	e.svc.cart["p2"] = 2

	_, err := e.run(t, "cart", "rm", "p1")
	require.NoError(t, err)
	_, gone := e.svc.cart["p1"]
	assert.False(t, gone)
	assert.Equal(t, 2, e.svc.cart["p2"])
}

func TestCartSummary_JSON(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 2

	out, err := e.run(t, "--format", "json", "cart", "summary")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			TotalItems    int     `json:"totalItems"`
			TotalQuantity int     `json:"totalQuantity"`
			Subtotal      float64 `json:"subtotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.TotalItems)
	assert.Equal(t, 2, resp.Data.TotalQuantity)
	assert.InDelta(t, 1798.0, resp.Data.Subtotal, 0.001)
}

func TestCartGrouped_Text(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1
	e.svc.cart["p2"] = 1

	out, err := e.run(t, "cart", "grouped")
	require.NoError(t, err)
	assert.Contains(t, out, "Threads:")
	assert.Contains(t, out, "Hydro:")
	assert.Contains(t, out, "Tumbler")
}

func TestCartSelect_PersistsAcrossInvocations(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1
	e.svc.cart["p2"] = 2

	_, err := e.run(t, "cart", "select", "p1")
	require.NoError(t, err)

	out, err := e.run(t, "cart", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* p1")
}

func TestCartSelect_RejectsUnknownItem(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "cart", "select", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBulkRm_RemovesSelected(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1
	e.svc.cart["p2"] = 2
	e.svc.cart["p3"] = 1

	_, err := e.run(t, "cart", "select", "p1")
	require.NoError(t, err)
	_, err = e.run(t, "cart", "select", "p3")
	require.NoError(t, err)

	out, err := e.run(t, "bulk", "rm")
	require.NoError(t, err)
	assert.Contains(t, out, "attempted 2, succeeded 2")
	_, p1 := e.svc.cart["p1"]
	_, p3 := e.svc.cart["p3"]
	assert.False(t, p1)
	assert.False(t, p3)
	assert.Equal(t, 2, e.svc.cart["p2"])
}

func TestBulkRm_NothingSelected(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 1

	_, err := e.run(t, "bulk", "rm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBulkMove_MovesToWishlist(t *testing.T) {
	e := newEnv(t)
	e.svc.cart["p1"] = 2

	_, err := e.run(t, "cart", "select", "p1")
	require.NoError(t, err)

	out, err := e.run(t, "bulk", "move")
	require.NoError(t, err)
	assert.Contains(t, out, "attempted 1, succeeded 1")
	_, inCart := e.svc.cart["p1"]
	assert.False(t, inCart)
	assert.True(t, e.svc.wish["p1"])
}

func TestWishlistAdd_ThenCheck(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "wishlist", "add", "p2")
	require.NoError(t, err)
	assert.True(t, e.svc.wish["p2"])

	out, err := e.run(t, "wishlist", "check", "p2")
	require.NoError(t, err)
	assert.Contains(t, out, "p2 is in the wishlist")

	out, err = e.run(t, "wishlist", "check", "p3")
	require.NoError(t, err)
	assert.Contains(t, out, "p3 is not in the wishlist")
}

func TestCartDiag_ReportsInvalidEntries(t *testing.T) {
	svc := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[
			{"itemId":"srv-p1","productId":"p1","quantity":1,
			 "product":{"id":"p1","name":"Hoodie","price":899,"stock":5}},
			{"itemId":"srv-gone","productId":"gone","quantity":1,"product":null}
		]}`)
	})
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("base_url: %s\nselection_db: %s\n",
		server.URL, filepath.Join(dir, "animomart.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	e := &env{server: server, configPath: configPath}

	out, err := e.run(t, "cart", "diag")
	require.NoError(t, err)
	assert.Contains(t, out, "gone")
	assert.Contains(t, out, "entity reference is missing")
}
