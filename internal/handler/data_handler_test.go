package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/timer"
)

// mockDataService はDataServiceInterfaceのモック実装。
type mockDataService struct {
	replaced *model.UserDocument
}

func (m *mockDataService) ReplaceDocument(st *timer.UserState, doc *model.UserDocument) {
	m.replaced = doc
}

func TestDataHandler_LoadData_ReturnsDocument(t *testing.T) {
	doc := &model.UserDocument{
		DisplayName: "太郎",
		Categories: []*model.Category{
			{ID: "cat-1", Name: "開発", Sessions: []*model.Session{}},
		},
		SchemaVersion: model.CurrentSchemaVersion,
	}
	h := NewDataHandler(newTestRegistry(doc), &mockDataService{})

	req := httptest.NewRequest(http.MethodGet, "/api/loadData", nil)
	req = withSession(req, "taro")
	w := httptest.NewRecorder()

	h.LoadData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp model.UserDocument
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.DisplayName != "太郎" {
		t.Errorf("displayName = %q, want 太郎", resp.DisplayName)
	}
	if len(resp.Categories) != 1 || resp.Categories[0].ID != "cat-1" {
		t.Errorf("categories = %+v, want cat-1", resp.Categories)
	}
}

func TestDataHandler_LoadData_LazyDefault(t *testing.T) {
	// ドキュメントが存在しないユーザーには空のデフォルトドキュメントが返る
	h := NewDataHandler(newTestRegistry(nil), &mockDataService{})

	req := httptest.NewRequest(http.MethodGet, "/api/loadData", nil)
	req = withSession(req, "taro")
	w := httptest.NewRecorder()

	h.LoadData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp model.UserDocument
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Categories == nil || len(resp.Categories) != 0 {
		t.Errorf("categories = %+v, want 空スライス", resp.Categories)
	}
	if resp.Active != nil {
		t.Errorf("active = %+v, want nil", resp.Active)
	}
	// 表示名はログインセッションから補完される
	if resp.DisplayName != "taroさん" {
		t.Errorf("displayName = %q, want taroさん", resp.DisplayName)
	}
}

func TestDataHandler_LoadData_Unauthenticated(t *testing.T) {
	h := NewDataHandler(newTestRegistry(nil), &mockDataService{})

	req := httptest.NewRequest(http.MethodGet, "/api/loadData", nil)
	w := httptest.NewRecorder()

	h.LoadData(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestDataHandler_SaveData_ReplacesDocument(t *testing.T) {
	svc := &mockDataService{}
	h := NewDataHandler(newTestRegistry(nil), svc)

	body := `{"displayName": "太郎", "categories": [{"id": "cat-1", "name": "開発", "sessions": []}], "active": null}`
	req := httptest.NewRequest(http.MethodPost, "/api/saveData", bytes.NewBufferString(body))
	req = withSession(req, "taro")
	w := httptest.NewRecorder()

	h.SaveData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp saveDataResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK {
		t.Error("ok = false, want true")
	}
	if svc.replaced == nil {
		t.Fatal("ReplaceDocumentが呼ばれていない")
	}
	if len(svc.replaced.Categories) != 1 || svc.replaced.Categories[0].Name != "開発" {
		t.Errorf("replaced categories = %+v", svc.replaced.Categories)
	}
}

func TestDataHandler_SaveData_NilCategoriesDefaulted(t *testing.T) {
	svc := &mockDataService{}
	h := NewDataHandler(newTestRegistry(nil), svc)

	req := httptest.NewRequest(http.MethodPost, "/api/saveData", bytes.NewBufferString(`{}`))
	req = withSession(req, "taro")
	w := httptest.NewRecorder()

	h.SaveData(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.replaced == nil || svc.replaced.Categories == nil {
		t.Error("categoriesが空スライスに補完されていない")
	}
}

func TestDataHandler_SaveData_InvalidJSON(t *testing.T) {
	h := NewDataHandler(newTestRegistry(nil), &mockDataService{})

	req := httptest.NewRequest(http.MethodPost, "/api/saveData", bytes.NewBufferString(`{invalid`))
	req = withSession(req, "taro")
	w := httptest.NewRecorder()

	h.SaveData(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", resp["code"])
	}
}
