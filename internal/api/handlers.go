package api

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"
)

// whatsappHandler receives Twilio webhook form posts and answers in TwiML.
func (s *Server) whatsappHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.whatsappHandler: processing webhook", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.whatsappHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.whatsappHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validSignature(r) {
		slog.Warn("Server.whatsappHandler: invalid webhook signature", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	sender := r.PostFormValue("From")
	if sender == "" {
		slog.Warn("Server.whatsappHandler: missing sender")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(r.PostFormValue("Body"))

	reply := s.engine.Handle(r.Context(), sender, body)

	message := &twiml.MessagingMessage{Body: reply}
	payload, err := twiml.Messages([]twiml.Element{message})
	if err != nil {
		slog.Error("Server.whatsappHandler: failed to render TwiML", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write([]byte(payload)); err != nil {
		slog.Error("Server.whatsappHandler: failed to write response", "error", err)
	}
}

// validSignature checks the X-Twilio-Signature header against the posted
// form, reconstructing the public URL Twilio signed.
func (s *Server) validSignature(r *http.Request) bool {
	base := s.publicURL
	if base == "" {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		base = scheme + "://" + r.Host
	}
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return s.validator.Validate(base+r.URL.RequestURI(), params, r.Header.Get("X-Twilio-Signature"))
}

// healthHandler answers load-balancer probes.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Server.healthHandler: failed to write response", "error", err)
	}
}

// verifyAPIKeyHandler checks that the text-generation backend accepts the
// configured credentials.
func (s *Server) verifyAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.verifier == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, errorResponse("OpenAI client not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	sample, err := s.verifier.Verify(ctx)
	if err != nil {
		slog.Error("Server.verifyAPIKeyHandler: verification failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, errorResponse("OpenAI API verification failed: "+err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse("OpenAI API key is valid", map[string]string{"sample": sample}))
}

// bucketVerifier is implemented by bucket backends that can run a
// round-trip probe, such as *blob.GCSBucket.
type bucketVerifier interface {
	Verify(ctx context.Context) (string, error)
}

// verifyGCSHandler probes the storage bucket with a small round trip.
func (s *Server) verifyGCSHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	verifier, ok := s.bucket.(bucketVerifier)
	if !ok || s.bucket == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, errorResponse("Storage not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	url, err := verifier.Verify(ctx)
	if err != nil {
		slog.Error("Server.verifyGCSHandler: verification failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, errorResponse("GCS verification failed: "+err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, okResponse("GCS bucket is accessible", map[string]string{"probe_url": url}))
}

// downloadHandler streams a stored plan PDF as an attachment.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.bucket == nil {
		http.Error(w, "Storage not configured", http.StatusInternalServerError)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/fuelqpro/console/download/")
	if name == "" || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}

	content, err := s.bucket.Download(r.Context(), name)
	if err != nil && !strings.Contains(name, "/") {
		// Plan objects live under the plans/ prefix; accept bare filenames.
		content, err = s.bucket.Download(r.Context(), "plans/"+name)
	}
	if err != nil {
		slog.Warn("Server.downloadHandler: object not available", "error", err, "object", name)
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment;filename="+path.Base(name))
	if _, err := w.Write(content); err != nil {
		slog.Error("Server.downloadHandler: failed to write response", "error", err)
	}
}
