package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
)

// Notice levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

const flashCookie = "flash"

// Notice is a one-time message for the user.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Notifier delivers notices about completed or failed operations.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// FlashNotifier queues notices on the request. They are shown by the page
// rendered for this request, or carried in a cookie across a redirect.
// Requests outside the Flashes middleware drop their notices.
type FlashNotifier struct{}

// Notify queues n on the request in ctx.
func (FlashNotifier) Notify(ctx context.Context, n Notice) {
	if s := sinkFrom(ctx); s != nil {
		s.add(n)
	}
}

type sinkKey struct{}

type flashSink struct {
	mu       sync.Mutex
	incoming []Notice // From the cookie
	pending  []Notice // Queued during this request
}

func (s *flashSink) add(n Notice) {
	s.mu.Lock()
	s.pending = append(s.pending, n)
	s.mu.Unlock()
}

func (s *flashSink) take() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append(s.incoming, s.pending...)
	s.incoming, s.pending = nil, nil
	return out
}

func sinkFrom(ctx context.Context) *flashSink {
	s, _ := ctx.Value(sinkKey{}).(*flashSink)
	return s
}

// takeNotices returns every notice for the current request and marks them
// shown.
func takeNotices(ctx context.Context) []Notice {
	if s := sinkFrom(ctx); s != nil {
		return s.take()
	}
	return nil
}

// Flashes reads notices from the flash cookie and writes the notices still
// pending when the response header goes out.
func Flashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := &flashSink{}
		hadCookie := false
		if c, err := r.Cookie(flashCookie); err == nil {
			hadCookie = true
			s.incoming = decodeFlash(c.Value)
		}

		fw := &flashWriter{ResponseWriter: w, sink: s, hadCookie: hadCookie}
		next.ServeHTTP(fw, r.WithContext(context.WithValue(r.Context(), sinkKey{}, s)))
		if !fw.wroteHeader {
			fw.commit()
		}
	})
}

type flashWriter struct {
	http.ResponseWriter
	sink        *flashSink
	hadCookie   bool
	wroteHeader bool
}

func (w *flashWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.commit()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *flashWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *flashWriter) commit() {
	w.wroteHeader = true

	w.sink.mu.Lock()
	carry := append(append([]Notice(nil), w.sink.incoming...), w.sink.pending...)
	w.sink.mu.Unlock()

	switch {
	case len(carry) > 0:
		http.SetCookie(w.ResponseWriter, &http.Cookie{
			Name:     flashCookie,
			Value:    encodeFlash(carry),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	case w.hadCookie:
		http.SetCookie(w.ResponseWriter, &http.Cookie{
			Name:     flashCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

func encodeFlash(notices []Notice) string {
	data, err := json.Marshal(notices)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeFlash(value string) []Notice {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var notices []Notice
	if err := json.Unmarshal(data, &notices); err != nil {
		return nil
	}
	return notices
}
