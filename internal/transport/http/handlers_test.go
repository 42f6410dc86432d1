package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
	"mcq-trainer/internal/domain"
)

func TestQuizFlowOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)
	client := newClient(t)

	res := postJSON(t, client, server.URL+"/api/sessions", map[string]any{"user_name": "Ada", "pin": testPIN})
	expectStatus(t, res, http.StatusUnprocessableEntity)

	res = uploadCSV(t, client, server.URL, mathCSV)
	expectStatus(t, res, http.StatusOK)
	var imported domain.ImportResult
	decode(t, res, &imported)
	if imported.Accepted != 2 || imported.Rejected != 0 || imported.Total != 2 {
		t.Fatalf("unexpected import result %+v", imported)
	}

	res = postJSON(t, client, server.URL+"/api/sessions", map[string]any{"user_name": "Ada", "pin": "0000"})
	expectStatus(t, res, http.StatusUnauthorized)

	res = postJSON(t, client, server.URL+"/api/sessions", map[string]any{
		"user_name":  "Ada",
		"pin":        testPIN,
		"subject":    "Math",
		"mode":       "exam",
		"difficulty": "hard",
		"count":      "5",
	})
	expectStatus(t, res, http.StatusCreated)
	var started startResponse
	decode(t, res, &started)
	if started.Served != 2 || started.Requested != 5 {
		t.Fatalf("expected 2 of 5 served, got %+v", started)
	}
	if started.Question.Answer != nil {
		t.Fatalf("exam mode must not expose the answer")
	}
	if started.Question.TimerSeconds != 15 || started.Question.Number != 1 {
		t.Fatalf("unexpected first question %+v", started.Question)
	}

	res = get(t, client, server.URL+"/api/session/question")
	expectStatus(t, res, http.StatusOK)
	res.Body.Close()

	res = postJSON(t, client, server.URL+"/api/session/answers", map[string]any{"choice": 2, "position": 0})
	expectStatus(t, res, http.StatusOK)
	var outcome app.AnswerOutcome
	decode(t, res, &outcome)
	if !outcome.Review.IsCorrect || outcome.Position != 1 || outcome.Complete {
		t.Fatalf("unexpected first outcome %+v", outcome)
	}

	res = postJSON(t, client, server.URL+"/api/session/answers", map[string]any{"choice": 2, "position": 0})
	expectStatus(t, res, http.StatusConflict)
	res.Body.Close()

	res = postJSON(t, client, server.URL+"/api/session/answers", map[string]any{"choice": "two", "position": 1})
	expectStatus(t, res, http.StatusBadRequest)
	res.Body.Close()

	res = postJSON(t, client, server.URL+"/api/session/finish", nil)
	expectStatus(t, res, http.StatusOK)
	var progress app.Progress
	decode(t, res, &progress)
	if progress.Finished || progress.Next == nil || progress.Next.Number != 2 || !progress.Next.IsLast {
		t.Fatalf("expected second question next, got %+v", progress)
	}

	res = postJSON(t, client, server.URL+"/api/session/answers", map[string]any{"timeout": true, "position": 1})
	expectStatus(t, res, http.StatusOK)
	decode(t, res, &outcome)
	if outcome.Review.IsCorrect || !outcome.Review.IsTimeout || !outcome.Complete {
		t.Fatalf("unexpected timeout outcome %+v", outcome)
	}
	if outcome.Score != 0.75 {
		t.Fatalf("expected 1 - 0.25 on hard, got %v", outcome.Score)
	}

	for i := 0; i < 2; i++ {
		res = postJSON(t, client, server.URL+"/api/session/finish", nil)
		expectStatus(t, res, http.StatusOK)
		decode(t, res, &progress)
		if !progress.Finished || progress.Result == nil || progress.Result.Accuracy != 50 {
			t.Fatalf("expected finished result, got %+v", progress)
		}
		if progress.Result.Date != "2024-05-01 09:30" {
			t.Fatalf("unexpected date %q", progress.Result.Date)
		}
	}

	res = get(t, client, server.URL+"/api/leaderboard")
	expectStatus(t, res, http.StatusOK)
	var lb domain.Leaderboard
	decode(t, res, &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].Name != "Ada" {
		t.Fatalf("expected a single leaderboard record, got %+v", lb.Entries)
	}

	res = get(t, client, server.URL+"/api/session/review")
	expectStatus(t, res, http.StatusOK)
	var review reviewResponse
	decode(t, res, &review)
	if len(review.Entries) != 2 {
		t.Fatalf("expected 2 review entries, got %d", len(review.Entries))
	}
	if review.Entries[0].SelectedText != "4" || review.Entries[1].SelectedText != domain.SkippedLabel {
		t.Fatalf("unexpected review texts %+v", review.Entries)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/session", nil)
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectStatus(t, res, http.StatusNoContent)
	res.Body.Close()

	res = get(t, client, server.URL+"/api/session/question")
	expectStatus(t, res, http.StatusSeeOther)
	if loc := res.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
	var redirect errorResponse
	decode(t, res, &redirect)
	if redirect.Redirect != "/" {
		t.Fatalf("expected redirect hint, got %+v", redirect)
	}
}

func TestPracticeModeExposesAnswer(t *testing.T) {
	server, _ := newTestServer(t)
	client := newClient(t)
	uploadCSV(t, client, server.URL, mathCSV).Body.Close()

	res := postJSON(t, client, server.URL+"/api/sessions", map[string]any{
		"user_name": "Ada",
		"pin":       testPIN,
		"mode":      "practice",
	})
	expectStatus(t, res, http.StatusCreated)
	var started startResponse
	decode(t, res, &started)
	if started.Question.Answer == nil || *started.Question.Answer != 2 {
		t.Fatalf("expected practice answer exposed, got %+v", started.Question)
	}
	if started.Requested != domain.DefaultQuestionCount {
		t.Fatalf("expected default count, got %d", started.Requested)
	}
}

func TestSessionCookieMustBeSigned(t *testing.T) {
	server, _ := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/session/question", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()
	expectStatus(t, res, http.StatusSeeOther)
}

func TestResetClearsDataAndSession(t *testing.T) {
	server, service := newTestServer(t)
	client := newClient(t)
	uploadCSV(t, client, server.URL, mathCSV).Body.Close()
	postJSON(t, client, server.URL+"/api/sessions", map[string]any{"user_name": "Ada", "pin": testPIN}).Body.Close()

	res := postJSON(t, client, server.URL+"/api/reset", nil)
	expectStatus(t, res, http.StatusOK)
	res.Body.Close()

	overview, err := service.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalQuestions != 0 {
		t.Fatalf("expected empty bank, got %d", overview.TotalQuestions)
	}

	res = get(t, client, server.URL+"/api/session/question")
	expectStatus(t, res, http.StatusSeeOther)
	res.Body.Close()
}

func TestUploadWithoutValidRows(t *testing.T) {
	server, _ := newTestServer(t)
	client := newClient(t)

	res := uploadCSV(t, client, server.URL, "only,three,fields\n")
	expectStatus(t, res, http.StatusBadRequest)
	var body errorResponse
	decode(t, res, &body)
	if body.Error != domain.ErrNoValidRows.Error() {
		t.Fatalf("unexpected error %q", body.Error)
	}
}

func TestRenderReviewPlaceholders(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	picked := 7
	items := renderReview([]domain.ReviewEntry{
		{Options: []string{"a", "b", "c", "d"}, CorrectChoice: 9},
		{Options: []string{"a", "b", "c", "d"}, UserChoice: &picked, CorrectChoice: 2},
	}, log)

	if items[0].SelectedText != domain.SkippedLabel || items[0].CorrectText != domain.UnavailableLabel || !items[0].LookupFailed {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].SelectedText != domain.UnavailableLabel || items[1].CorrectText != "b" || !items[1].LookupFailed {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		``:      domain.DefaultQuestionCount,
		`null`:  domain.DefaultQuestionCount,
		`"abc"`: domain.DefaultQuestionCount,
		`3`:     3,
		`"4"`:   4,
		`0`:     0,
	}
	for raw, want := range cases {
		if got := parseCount(json.RawMessage(raw)); got != want {
			t.Fatalf("parseCount(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrAuthFailed, http.StatusUnauthorized},
		{domain.ErrNameRequired, http.StatusBadRequest},
		{domain.ErrStalePosition, http.StatusConflict},
		{domain.ErrEmptyPool, http.StatusUnprocessableEntity},
		{fmt.Errorf("load: %w", domain.ErrNoActiveSession), http.StatusSeeOther},
		{domain.ErrSessionComplete, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := classify(tc.err); got != tc.want {
			t.Fatalf("classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	res, err := client.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return res
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	res, err := client.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return res
}

func uploadCSV(t *testing.T, client *http.Client, baseURL, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("csv_file", "questions.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = io.Copy(part, strings.NewReader(content))
	_ = mw.Close()

	res, err := client.Post(baseURL+"/api/questions", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return res
}

func expectStatus(t *testing.T, res *http.Response, want int) {
	t.Helper()
	if res.StatusCode != want {
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		t.Fatalf("%s %s: expected status %d, got %d: %s", res.Request.Method, res.Request.URL.Path, want, res.StatusCode, body)
	}
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
