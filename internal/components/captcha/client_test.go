package captcha

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"courtcase-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeSolver imitates the in.php / res.php pair of a 2captcha style service.
type fakeSolver struct {
	jobs      map[string]string
	pending   map[string]int
	submitted [][]byte
	reported  []string
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{
		jobs:    map[string]string{},
		pending: map[string]int{},
	}
}

func writeJson(t testing.TB, w http.ResponseWriter, status int, request, errorText string) {
	w.Header().Set("content-type", "application/json")
	err := json.NewEncoder(w).Encode(serviceResponse{
		Status:    status,
		Request:   request,
		ErrorText: errorText,
	})
	require.NoError(t, err)
}

func (f *fakeSolver) handler(t testing.TB) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("key") != "secret" {
			writeJson(t, w, 0, "ERROR_WRONG_USER_KEY", "wrong key")
			return
		}
		require.Equal(t, "post", r.FormValue("method"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		image, err := io.ReadAll(file)
		require.NoError(t, err)
		if len(image) == 0 {
			writeJson(t, w, 0, "ERROR_ZERO_CAPTCHA_FILESIZE", "")
			return
		}
		f.submitted = append(f.submitted, image)
		f.jobs["42"] = "w9qz"
		f.pending["42"] = 1
		writeJson(t, w, 1, "42", "")
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "secret" {
			writeJson(t, w, 0, "ERROR_WRONG_USER_KEY", "")
			return
		}
		switch q.Get("action") {
		case "get":
			id := q.Get("id")
			answer, ok := f.jobs[id]
			if !ok {
				writeJson(t, w, 0, "ERROR_WRONG_CAPTCHA_ID", "")
				return
			}
			if f.pending[id] > 0 {
				f.pending[id]--
				writeJson(t, w, 0, notReadyCode, "")
				return
			}
			writeJson(t, w, 1, answer, "")
		case "getbalance":
			writeJson(t, w, 1, "3.1415", "")
		case "reportbad":
			f.reported = append(f.reported, q.Get("id"))
			writeJson(t, w, 1, "OK_REPORT_RECORDED", "")
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	return mux
}

func setupClient(t testing.TB, apiKey string) (*Client, *fakeSolver, *telemetry.RecorderAPI) {
	solver := newFakeSolver()
	server := httptest.NewServer(solver.handler(t))
	t.Cleanup(server.Close)

	tel := telemetry.NewRecorderAPI()
	client := NewClient(ClientOptions{
		ApiKey:    apiKey,
		SubmitUrl: server.URL + "/in.php",
		ResultUrl: server.URL + "/res.php",
	}, tel)
	return client, solver, tel
}

func TestClientRoundTrip(t *testing.T) {
	client, solver, _ := setupClient(t, "secret")
	ctx := context.Background()

	jobId, err := client.Submit(ctx, []byte("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "42", jobId)
	require.Equal(t, [][]byte{[]byte("png-bytes")}, solver.submitted)

	_, err = client.Poll(ctx, jobId)
	require.ErrorIs(t, err, ErrNotReady)

	text, err := client.Poll(ctx, jobId)
	require.NoError(t, err)
	require.Equal(t, "w9qz", text)

	err = client.ReportBad(ctx, jobId)
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, solver.reported)

	balance, err := client.Balance(ctx)
	require.NoError(t, err)
	require.InDelta(t, 3.1415, balance, 0.00001)
}

func TestClientServiceErrors(t *testing.T) {
	client, _, tel := setupClient(t, "secret")
	ctx := context.Background()

	_, err := client.Submit(ctx, nil)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "ERROR_ZERO_CAPTCHA_FILESIZE", serviceErr.Code)
	require.NotEmpty(t, tel.Warnings("client.submit"))

	_, err = client.Poll(ctx, "unknown")
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "ERROR_WRONG_CAPTCHA_ID", serviceErr.Code)
}

func TestClientWrongKey(t *testing.T) {
	client, solver, _ := setupClient(t, "not-the-key")

	_, err := client.Submit(context.Background(), []byte("png"))
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "ERROR_WRONG_USER_KEY", serviceErr.Code)
	require.Empty(t, solver.submitted)
}

func TestClientNoCredential(t *testing.T) {
	client, solver, _ := setupClient(t, "")

	_, err := client.Submit(context.Background(), []byte("png"))
	require.ErrorIs(t, err, ErrNoCredential)
	require.Empty(t, solver.submitted)

	_, err = client.Poll(context.Background(), "42")
	require.ErrorIs(t, err, ErrNoCredential)
}

func TestClientTransportError(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	client := NewClient(ClientOptions{
		ApiKey:    "secret",
		SubmitUrl: "http://127.0.0.1:1/in.php",
		ResultUrl: "http://127.0.0.1:1/res.php",
	}, tel)

	_, err := client.Submit(context.Background(), []byte("png"))
	require.Error(t, err)
	require.NotEmpty(t, tel.Broken("client.submit"))

	// poll transport errors are not terminal for the resolver
	_, err = client.Poll(context.Background(), "42")
	require.Error(t, err)
	require.False(t, isTerminal(err))
}
