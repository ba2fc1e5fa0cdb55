package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/trezcool/malipo/core/user"
	"github.com/trezcool/malipo/tests"
)

func Test_authApi_register(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Taken", "taken@test.cd", "s3cr3t!!", true)

	tests := []httpTest{
		{
			name: "empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":     "this field is required",
				"email":    "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name: "invalid email", body: []byte(`{"name":"Jane","email":"nope","password":"s3cr3t!!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "short password", body: []byte(`{"name":"Jane","email":"jane@test.cd","password":"short"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password must be at least 8 characters in length"}),
		},
		{
			name: "password too similar to email", body: []byte(`{"name":"Jane","email":"jane@test.cd","password":"jane@test.cd1"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password is too similar to name or email"}),
		},
		{
			name: "email taken", body: []byte(`{"name":"Jane","email":"taken@test.cd","password":"s3cr3t!!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "ok", body: []byte(`{"name":"Jane","email":"jane@test.cd","password":"s3cr3t!!"}`),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/register", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				body := unmarchallMap(t, rec.Body.Bytes())
				if body["access_token"] == "" || body["refresh_token"] == "" {
					t.Error("register did not return a token pair")
				}
				if body["token_type"] != "bearer" {
					t.Errorf("token_type = %v, want bearer", body["token_type"])
				}

				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "jane@test.cd"})
				if err != nil {
					t.Fatalf("GetUser() failed: %v", err)
				}
				if !usr.IsActive {
					t.Error("registered user is not active")
				}
				if usr.CheckPassword("s3cr3t!!") != nil {
					t.Error("password was not set")
				}
			}
		})
	}
}

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Jane", "jane@test.cd", "s3cr3t!!", true)
	testutil.CreateUser(t, usrRepo, "Gone", "gone@test.cd", "s3cr3t!!", false)

	badCreds := marchallObj(t, httpErr{Error: "incorrect email or password"})

	tests := []httpTest{
		{
			name: "empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			}),
		},
		{name: "unknown email", body: []byte(`{"email":"lol@test.cd","password":"s3cr3t!!"}`), wantCode: http.StatusBadRequest, wantData: badCreds},
		{name: "wrong password", body: []byte(`{"email":"jane@test.cd","password":"nope"}`), wantCode: http.StatusBadRequest, wantData: badCreds},
		{
			name: "deactivated account", body: []byte(`{"email":"gone@test.cd","password":"s3cr3t!!"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "email is case-insensitive", body: []byte(`{"email":"JANE@test.cd","password":"s3cr3t!!"}`), wantCode: http.StatusOK},
		{name: "ok", body: []byte(`{"email":"jane@test.cd","password":"s3cr3t!!"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				body := unmarchallMap(t, rec.Body.Bytes())
				if body["access_token"] == "" || body["refresh_token"] == "" {
					t.Error("login did not return a token pair")
				}
			}
		})
	}

	// lastLogin is stamped on successful login
	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "jane@test.cd"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.LastLogin.IsZero() {
		t.Error("lastLogin was not set")
	}
}

func Test_authApi_refresh(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Jane", "jane@test.cd", "s3cr3t!!", true)
	gone := testutil.CreateUser(t, usrRepo, "Gone", "gone@test.cd", "s3cr3t!!", false)

	refresh := getRefreshToken(t, usr)
	invalidRefresh := marchallObj(t, httpErr{Error: "invalid refresh token"})

	tests := []httpTest{
		{
			name: "empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"refresh_token": "this field is required"}),
		},
		{name: "garbage token", body: []byte(`{"refresh_token":"lol"}`), wantCode: http.StatusUnauthorized, wantData: invalidRefresh},
		{
			// an access token must not be accepted in place of a refresh token
			name: "access token", body: marchallObj(t, map[string]string{"refresh_token": getToken(t, usr)}),
			wantCode: http.StatusUnauthorized, wantData: invalidRefresh,
		},
		{
			name: "deactivated account", body: marchallObj(t, map[string]string{"refresh_token": getRefreshToken(t, gone)}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "ok", body: marchallObj(t, map[string]string{"refresh_token": refresh}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/auth/refresh", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				body := unmarchallMap(t, rec.Body.Bytes())
				if body["access_token"] == "" {
					t.Error("refresh did not return an access token")
				}
				// the refresh token is returned unchanged
				if body["refresh_token"] != refresh {
					t.Error("refresh rotated the refresh token")
				}
			}
		})
	}
}

func Test_refreshTokenIsNotAnAccessCredential(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Jane", "jane@test.cd", "s3cr3t!!", true)

	tt := httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
	}
	req, rec := newAuthRequest(http.MethodGet, "/api/categories", getRefreshToken(t, usr))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}
