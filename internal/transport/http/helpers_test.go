package http

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
	"mcq-trainer/internal/auth"
	"mcq-trainer/internal/infra/memory"
)

const testPIN = "1234"

const mathCSV = `What is 2 + 2?,3,4,5,6,2,Math
What is 3 * 3?,6,9,12,3,2,Math
`

// inOrder keeps the bank order so tests can predict which question comes next.
type inOrder struct{}

func (inOrder) Shuffle(int, func(i, j int)) {}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	blobs := memory.NewBlobStore()
	service := app.NewQuizService(
		app.NewQuestionStore(blobs, log),
		app.NewLeaderboardStore(blobs, log),
		memory.NewSessionStore(),
		auth.NewPINVerifier(testPIN, ""),
		app.WithLogger(log),
		app.WithShuffler(inOrder{}),
		app.WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }),
	)
	router := NewRouter(service, auth.NewSessionTokens("test-secret", time.Hour), RouterConfig{Log: log})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, service
}

// newClient keeps cookies between calls and does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
