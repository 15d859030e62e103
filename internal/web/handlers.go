package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/septivank/meter-readings/internal/ingest"
	"github.com/septivank/meter-readings/internal/query"
)

const (
	uploadField = "meterReadingsFile"

	// multipartOverhead is the room left in the request body for boundaries
	// and part headers, so the file size check enforces MaxUploadBytes
	multipartOverhead = 64 << 10

	errMissingPaging = "Missing paging information"
)

// handleHealth reports whether the store is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.readings.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ok"})
}

// handleGetReading returns one reading by id
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid meter reading id")
		return
	}

	reading, err := s.readings.FindByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeSuccess(w, reading)
}

// handleListReadings returns one page of readings.
// page and page_size are required; account_id and sort are optional.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errMissingPaging)
		return
	}
	pageSize, err := strconv.Atoi(q.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errMissingPaging)
		return
	}

	var accountID *int64
	if raw := q.Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account id")
			return
		}
		accountID = &id
	}

	req := query.PageRequest{Page: page, PageSize: pageSize, SortKey: q.Get("sort")}
	result, err := s.readings.List(r.Context(), req, accountID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeSuccess(w, result)
}

// handleSubmitReadings ingests a JSON array of readings
func (s *Server) handleSubmitReadings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var readings []ingest.SubmittedReading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.respondError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.ingester.Ingest(r.Context(), ingest.Candidates(readings))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeSuccess(w, result)
}

// handleUploadReadings ingests a CSV file uploaded as multipart form data
func (s *Server) handleUploadReadings(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.respondError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid upload form")
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, &http.MaxBytesError{Limit: maxSize})
		return
	}

	result, err := s.ingester.IngestCSV(r.Context(), file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeSuccess(w, result)
}
