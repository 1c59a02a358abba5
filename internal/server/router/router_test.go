package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
	"github.com/mamadbah2/farmcore/internal/repository/memory"
	"github.com/mamadbah2/farmcore/internal/server/handlers"
	"github.com/mamadbah2/farmcore/internal/service/alerts"
	"github.com/mamadbah2/farmcore/internal/service/animals"
	"github.com/mamadbah2/farmcore/internal/service/ledger"
	"github.com/mamadbah2/farmcore/internal/service/sales"
	"github.com/mamadbah2/farmcore/internal/service/stock"
)

type errorEnvelope struct {
	Error struct {
		Kind    models.ErrorKind `json:"kind"`
		Message string           `json:"message"`
	} `json:"error"`
}

func setupEngine(t *testing.T) *gin.Engine {
	t.Helper()
	uow := repository.NewRunner(memory.NewStore(), 3, nil)
	recorder := sales.NewRecorder(uow, nil, nil)
	registry := animals.NewRegistry(uow, recorder, nil)
	products := ledger.NewService(uow, recorder, nil)
	engine := alerts.NewEngine(uow, registry, products, nil)
	return New(Handlers{
		Animals:   handlers.NewAnimalHandler(registry, nil),
		Inventory: handlers.NewInventoryHandler(products, nil),
		Alerts:    handlers.NewAlertHandler(engine, nil),
		Sales:     handlers.NewSaleHandler(recorder, nil),
		Stock:     handlers.NewStockHandler(stock.NewCounter(uow, nil), nil),
	}, nil)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, kind models.ErrorKind) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	body := decode[errorEnvelope](t, w)
	if body.Error.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, body.Error.Kind)
	}
	if body.Error.Message == "" {
		t.Fatal("expected an error message")
	}
}

func createRabbit(t *testing.T, r *gin.Engine, name string) models.Animal {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/rabbits/add", map[string]any{
		"name": name, "gender": "female", "origin": "birth", "birth_date": "2026-06-01", "weight": "2.4",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create rabbit code %d: %s", w.Code, w.Body.String())
	}
	return decode[models.Animal](t, w)
}

func TestHealthz(t *testing.T) {
	r := setupEngine(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz code %d", w.Code)
	}
}

func TestAnimalDiscardAndSellFlow(t *testing.T) {
	r := setupEngine(t)
	a := createRabbit(t, r, "Luna")
	if a.Discard.State != models.DiscardActive || a.Slaughter.State != models.NotSlaughtered {
		t.Fatalf("unexpected initial states: %+v %+v", a.Discard, a.Slaughter)
	}

	w := doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/discard", map[string]any{"reason": "x"})
	expectError(t, w, http.StatusBadRequest, models.KindReasonTooShort)

	w = doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/sell", map[string]any{"price": "25", "sold_by": "Aminata"})
	if w.Code != http.StatusCreated {
		t.Fatalf("sell code %d: %s", w.Code, w.Body.String())
	}
	sale := decode[models.Sale](t, w)
	if sale.Kind != models.SaleAnimal || sale.AnimalID != a.ID || !sale.Price.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	w = doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/discard", map[string]any{"reason": "Vendido a tercero"})
	expectError(t, w, http.StatusConflict, models.KindAlreadyDiscarded)

	w = doJSON(t, r, http.MethodGet, "/sales?kind=animal", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list sales code %d", w.Code)
	}
	if got := decode[[]models.Sale](t, w); len(got) != 1 {
		t.Fatalf("expected one sale, got %d", len(got))
	}
}

func TestSlaughterThenSellFromFreezer(t *testing.T) {
	r := setupEngine(t)
	a := createRabbit(t, r, "Coco")

	w := doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/slaughter", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("slaughter code %d: %s", w.Code, w.Body.String())
	}
	slaughtered := decode[models.Animal](t, w)
	if slaughtered.Slaughter.State != models.SlaughteredInFreezer || slaughtered.Discard.State != models.DiscardActive {
		t.Fatalf("unexpected states after slaughter: %+v %+v", slaughtered.Discard, slaughtered.Slaughter)
	}

	w = doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/slaughter", nil)
	expectError(t, w, http.StatusConflict, models.KindInvalidStatusTransition)

	w = doJSON(t, r, http.MethodPost, "/rabbits/"+a.ID+"/sell", map[string]any{"price": "12.5", "sold_by": "Moussa"})
	if w.Code != http.StatusCreated {
		t.Fatalf("sell code %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/rabbits/"+a.ID, nil)
	got := decode[models.Animal](t, w)
	if got.Slaughter.State != models.SoldFromFreezer || !got.Discarded() {
		t.Fatalf("unexpected states after sale: %+v %+v", got.Discard, got.Slaughter)
	}
}

func TestSlaughterRouteOnlyForCapableSpecies(t *testing.T) {
	r := setupEngine(t)
	w := doJSON(t, r, http.MethodPost, "/cows/add", map[string]any{
		"name": "Bella", "gender": "FEMALE", "origin": "PURCHASE", "purchase_date": "2025-03-10",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create cow code %d: %s", w.Code, w.Body.String())
	}
	cow := decode[models.Animal](t, w)

	w = doJSON(t, r, http.MethodPost, "/cows/"+cow.ID+"/slaughter", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected no slaughter route for cows, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/rabbits/"+cow.ID, nil)
	expectError(t, w, http.StatusNotFound, models.KindNotFound)
}

func TestInventoryHoneyFlow(t *testing.T) {
	r := setupEngine(t)
	a := createRabbit(t, r, "Miel")

	w := doJSON(t, r, http.MethodPost, "/inventory-products", map[string]any{
		"product_type": "honey", "quantity": "10", "unit": "dozens", "animal_id": a.ID,
	})
	expectError(t, w, http.StatusBadRequest, models.KindInvalidUnit)

	w = doJSON(t, r, http.MethodPost, "/inventory-products", map[string]any{
		"product_type": "HONEY", "quantity": "10", "unit": "KG", "animal_id": a.ID, "location": "shed",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create product code %d: %s", w.Code, w.Body.String())
	}
	product := decode[models.InventoryProduct](t, w)

	w = doJSON(t, r, http.MethodPost, "/inventory-products/"+product.ID+"/sell", map[string]any{
		"quantity": "4", "price": "20", "sold_by": "Fatou",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("sell code %d: %s", w.Code, w.Body.String())
	}
	res := decode[ledger.SellResult](t, w)
	if !res.Product.Quantity.Equal(decimal.NewFromInt(6)) || res.Product.Status != models.StatusAvailable {
		t.Fatalf("unexpected product after sell: %+v", res.Product)
	}
	if res.Sale == nil || res.Sale.ProductID != product.ID {
		t.Fatalf("expected a linked sale, got %+v", res.Sale)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory-products/"+product.ID+"/sell", map[string]any{"quantity": "7"})
	expectError(t, w, http.StatusConflict, models.KindInsufficientQuantity)

	w = doJSON(t, r, http.MethodPost, "/inventory-products/"+product.ID+"/adjust", map[string]any{
		"op": "subtract", "amount": "1", "reason": "spilled",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("adjust code %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/inventory-products/"+product.ID+"/transactions", nil)
	txns := decode[[]models.InventoryTransaction](t, w)
	if len(txns) != 3 {
		t.Fatalf("expected entry, exit and adjustment, got %d", len(txns))
	}
	sum := decimal.Zero
	for _, txn := range txns {
		sum = sum.Add(txn.Delta)
	}
	if !sum.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("ledger does not balance: %s", sum)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory-products/"+product.ID+"/discard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("discard code %d: %s", w.Code, w.Body.String())
	}
	discarded := decode[models.InventoryProduct](t, w)
	if discarded.Status != models.StatusDiscarded || !discarded.Quantity.IsZero() {
		t.Fatalf("unexpected product after discard: %+v", discarded)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory-products/"+product.ID+"/reserve", nil)
	expectError(t, w, http.StatusConflict, models.KindInvalidStatusTransition)
}

func TestAlertCompleteSlaughtersSelection(t *testing.T) {
	r := setupEngine(t)
	a1 := createRabbit(t, r, "A1")
	a2 := createRabbit(t, r, "A2")

	now := time.Now().UTC()
	w := doJSON(t, r, http.MethodPost, "/alerts", map[string]any{
		"name":       "slaughter_reminder",
		"priority":   "high",
		"init_date":  now.AddDate(0, 0, -1).Format("2006-01-02"),
		"max_date":   now.AddDate(0, 0, 7).Format("2006-01-02"),
		"animal_ids": []string{a1.ID, a2.ID},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create alert code %d: %s", w.Code, w.Body.String())
	}
	alert := decode[models.Alert](t, w)

	w = doJSON(t, r, http.MethodGet, "/alerts/"+alert.ID+"/rabbits", nil)
	if members := decode[[]models.Animal](t, w); len(members) != 2 {
		t.Fatalf("expected two members, got %d", len(members))
	}

	w = doJSON(t, r, http.MethodPost, "/alerts/"+alert.ID+"/complete", map[string]any{
		"slaughtered_rabbit_ids": []string{a1.ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete code %d: %s", w.Code, w.Body.String())
	}
	res := decode[alerts.CompletionResult](t, w)
	if res.Alert.Status != models.AlertDone || len(res.Slaughtered) != 1 || len(res.Products) != 1 {
		t.Fatalf("unexpected completion: %+v", res)
	}

	w = doJSON(t, r, http.MethodGet, "/rabbits/"+a2.ID, nil)
	if got := decode[models.Animal](t, w); got.Slaughtered() {
		t.Fatal("unselected rabbit must not be slaughtered")
	}

	w = doJSON(t, r, http.MethodPost, "/alerts/"+alert.ID+"/decline", map[string]any{"reason": "ya no hace falta"})
	expectError(t, w, http.StatusConflict, models.KindAlertNotPending)
}

func TestStockCounter(t *testing.T) {
	r := setupEngine(t)
	w := doJSON(t, r, http.MethodPost, "/inventory", map[string]any{"name": "Feed bags", "quantity": 3})
	if w.Code != http.StatusCreated {
		t.Fatalf("create item code %d: %s", w.Code, w.Body.String())
	}
	item := decode[models.StockItem](t, w)

	w = doJSON(t, r, http.MethodPost, "/inventory/"+item.ID+"/add", map[string]any{"amount": 2})
	if got := decode[models.StockItem](t, w); got.Quantity != 5 {
		t.Fatalf("expected 5 after add, got %d", got.Quantity)
	}

	w = doJSON(t, r, http.MethodPost, "/inventory/"+item.ID+"/subtract", map[string]any{"amount": 9})
	expectError(t, w, http.StatusConflict, models.KindInsufficientQuantity)

	w = doJSON(t, r, http.MethodPut, "/inventory/"+item.ID+"/quantity", map[string]any{})
	expectError(t, w, http.StatusBadRequest, models.KindValidation)

	w = doJSON(t, r, http.MethodPut, "/inventory/"+item.ID+"/quantity", map[string]any{"quantity": 0})
	if got := decode[models.StockItem](t, w); got.Quantity != 0 {
		t.Fatalf("expected 0 after set, got %d", got.Quantity)
	}
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	r := setupEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/rabbits/add", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	expectError(t, w, http.StatusBadRequest, models.KindValidation)
}
