package versioning

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    APIVersion
		wantErr bool
	}{
		{"1", APIVersion{Major: 1}, false},
		{"1.2", APIVersion{Major: 1, Minor: 2}, false},
		{"1.2.3", APIVersion{Major: 1, Minor: 2, Patch: 3}, false},
		{"v1.0.0", APIVersion{Major: 1}, false},
		{"v2", APIVersion{Major: 2}, false},
		{"", APIVersion{}, true},
		{"abc", APIVersion{}, true},
		{"1.2.3.4", APIVersion{}, true},
		{"1.x", APIVersion{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestCompare(t *testing.T) {
	v1 := APIVersion{Major: 1, Minor: 0, Patch: 0}
	v11 := APIVersion{Major: 1, Minor: 1, Patch: 0}
	v2 := APIVersion{Major: 2, Minor: 0, Patch: 0}

	assert.Equal(t, 0, v1.Compare(v1))
	assert.Equal(t, -1, v1.Compare(v11))
	assert.Equal(t, 1, v11.Compare(v1))
	assert.Equal(t, -1, v1.Compare(v2))
	assert.Equal(t, 1, v2.Compare(v11))
}

func TestIsCompatible(t *testing.T) {
	assert.True(t, IsCompatible(CurrentVersion))
	assert.True(t, IsCompatible(APIVersion{Major: CurrentVersion.Major}))
	assert.False(t, IsCompatible(APIVersion{Major: CurrentVersion.Major + 1}))
	assert.False(t, IsCompatible(APIVersion{Major: CurrentVersion.Major, Minor: CurrentVersion.Minor + 1}))
}

func TestString(t *testing.T) {
	assert.Equal(t, "1.2.3", APIVersion{Major: 1, Minor: 2, Patch: 3}.String())
}

func TestMiddlewareStampsVersion(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CurrentVersion.String(), rec.Header().Get(VersionHeader))
}

func TestMiddlewareAcceptsCompatibleVersion(t *testing.T) {
	called := false
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(RequestedVersionHeader, "v1.0")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
}

func TestMiddlewareRejectsIncompatibleVersion(t *testing.T) {
	tests := []string{"2.0", "v99", "garbage"}

	for _, requested := range tests {
		t.Run(requested, func(t *testing.T) {
			called := false
			handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			req.Header.Set(RequestedVersionHeader, requested)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusNotAcceptable, rec.Code)
			assert.Contains(t, rec.Body.String(), "unsupported API version")
		})
	}
}
