package tests

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	. "github.com/trezcool/malipo/apps/api/echo"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/tests"
)

func Test_categoryApi_create(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "auth required", body: []byte(`{"title":"June Fees"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "title required", token: adminToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "blank title", token: adminToken, body: []byte(`{"title":"   "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "negative amount", token: adminToken, body: []byte(`{"title":"June Fees","amount_expected":"-5"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount_expected": "expected amount cannot be negative"}),
		},
		{name: "ok", token: adminToken, body: []byte(`{"title":"June Fees","description":"Fees for June","amount_expected":"25.50"}`), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/categories", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				body := unmarchallMap(t, rec.Body.Bytes())
				token, _ := body["public_token"].(string)
				if len(token) != 43 {
					t.Errorf("public_token len = %d, want 43", len(token))
				}
				if body["is_active"] != true {
					t.Error("new category is not active")
				}
				for _, k := range []string{"pending_count", "confirmed_count", "rejected_count"} {
					if body[k] != float64(0) {
						t.Errorf("%s = %v, want 0", k, body[k])
					}
				}
			}
		})
	}
}

func Test_categoryApi_query(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "s3cr3t!!", true)

	now := time.Now().UTC()
	older := testutil.CreateCategory(t, catRepo, admin.ID, "Old", true, nil, now.Add(-time.Hour))
	newer := testutil.CreateCategory(t, catRepo, admin.ID, "New", true, nil, now)
	testutil.CreateCategory(t, catRepo, other.ID, "Not mine", true, nil)

	testutil.CreateSubmission(t, subRepo, newer.ID, "Alice", "10", submission.StatusPending)
	testutil.CreateSubmission(t, subRepo, newer.ID, "Bob", "10", submission.StatusConfirmed)

	req, rec := newAuthRequest(http.MethodGet, "/api/categories", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	cats := unmarchallList(t, rec.Body.Bytes())
	if len(cats) != 2 {
		t.Fatalf("len = %d, want 2 (only own categories)", len(cats))
	}
	// most recent first
	if cats[0]["id"] != newer.ID || cats[1]["id"] != older.ID {
		t.Errorf("order = [%v %v], want [New Old]", cats[0]["title"], cats[1]["title"])
	}
	if cats[0]["pending_count"] != float64(1) || cats[0]["confirmed_count"] != float64(1) {
		t.Errorf("counts = %v/%v, want 1/1", cats[0]["pending_count"], cats[0]["confirmed_count"])
	}
}

func Test_categoryApi_retrieve(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "s3cr3t!!", true)
	cat := testutil.CreateCategory(t, catRepo, admin.ID, "June Fees", true, nil)

	tests := []httpTest{
		{name: "auth required", path: "/api/categories/" + cat.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "unknown id", path: "/api/categories/lol", token: getToken(t, admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			// another admin's category is indistinguishable from a missing one
			name: "not owner", path: "/api/categories/" + cat.ID, token: getToken(t, other),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{name: "ok", path: "/api/categories/" + cat.ID, token: getToken(t, admin), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				body := unmarchallMap(t, rec.Body.Bytes())
				if body["id"] != cat.ID || body["public_token"] != cat.PublicToken {
					t.Errorf("unexpected body: %s", rec.Body.String())
				}
			}
		})
	}
}

func Test_categoryApi_update(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "s3cr3t!!", true)
	cat := testutil.CreateCategory(t, catRepo, admin.ID, "June Fees", true, nil)

	tests := []httpTest{
		{
			name: "not owner", token: getToken(t, other), body: []byte(`{"title":"Hacked"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "blank title", token: getToken(t, admin), body: []byte(`{"title":" "}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "title cannot be blank"}),
		},
		{name: "partial update", token: getToken(t, admin), body: []byte(`{"description":"Updated"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPatch, "/api/categories/"+cat.ID, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				body := unmarchallMap(t, rec.Body.Bytes())
				// only the provided field changed; the token is immutable
				if body["title"] != "June Fees" || body["description"] != "Updated" {
					t.Errorf("unexpected body: %s", rec.Body.String())
				}
				if body["public_token"] != cat.PublicToken {
					t.Error("update changed the public token")
				}
			}
		})
	}
}

func Test_categoryApi_activation(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "s3cr3t!!", true)
	cat := testutil.CreateCategory(t, catRepo, admin.ID, "June Fees", true, nil)
	adminToken := getToken(t, admin)

	deactivate := "/api/categories/" + cat.ID + "/deactivate"
	activate := "/api/categories/" + cat.ID + "/activate"

	tests := []httpTest{
		{name: "not owner", path: deactivate, token: getToken(t, other), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name: "deactivate", path: deactivate, token: adminToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: "category deactivated; its public link no longer accepts submissions"}),
		},
		{
			name: "reactivate", path: activate, token: adminToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: "category activated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the public link survived the deactivate/activate round trip
	req, rec := newRequest(http.MethodGet, "/api/public/categories/"+cat.PublicToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("public link broken after reactivation: code = %d", rec.Code)
	}
}

func Test_categoryApi_exportCSV(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "s3cr3t!!", true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "s3cr3t!!", true)
	cat := testutil.CreateCategory(t, catRepo, admin.ID, "June Fees", true, nil)

	now := time.Now().UTC()
	first := testutil.CreateSubmission(t, subRepo, cat.ID, "Alice", "10.00", submission.StatusConfirmed, now.Add(-time.Hour))
	second := testutil.CreateSubmission(t, subRepo, cat.ID, "Bob", "20.00", submission.StatusPending, now)

	t.Run("not owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/categories/"+cat.ID+"/export.csv", getToken(t, other))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/categories/"+cat.ID+"/export.csv", getToken(t, admin))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200; body: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("Content-Type = %s, want text/csv", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=") {
			t.Errorf("Content-Disposition = %s, want attachment", cd)
		}

		records, err := csv.NewReader(rec.Body).ReadAll()
		if err != nil {
			t.Fatalf("reading CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("CSV rows = %d, want 3 (header + 2)", len(records))
		}
		// oldest first
		if records[1][0] != first.ID || records[2][0] != second.ID {
			t.Errorf("CSV order = [%s %s], want [Alice Bob]", records[1][1], records[2][1])
		}
	})
}
