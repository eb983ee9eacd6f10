package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/christopherklint97/imputr/internal/export"
	"github.com/christopherklint97/imputr/internal/report"
	"github.com/christopherklint97/imputr/internal/timely"
	"github.com/christopherklint97/imputr/internal/timesheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// events proxies one page of the Timely events endpoint.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := timesheet.ParseRange(q.Get("since"), q.Get("upto"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := 1
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid page %q", v)})
			return
		}
	}

	events, err := s.pager.EventsPage(r.Context(), chi.URLParam(r, "accountID"), rng.From.String(), rng.To.String(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []timely.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "excel" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid format %q (want json or excel)", format)})
		return
	}

	res, err := s.gen.Build(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "json" {
		var buf bytes.Buffer
		if err := export.WriteJSON(&buf, s.gen.Records(res)); err != nil {
			s.writeError(w, r, fmt.Errorf("encoding records: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, s.gen.Rows(res)); err != nil {
		s.writeError(w, r, fmt.Errorf("writing spreadsheet: %w", err))
		return
	}
	filename := fmt.Sprintf("imputations_%s_%s.xlsx", req.Range.From, req.Range.To)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.gen.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseRequest reads from_date, to_date and client_filter. A request with
// neither date covers the current month.
func (s *Server) parseRequest(r *http.Request) (report.Request, error) {
	q := r.URL.Query()
	req := report.Request{
		AccountID:    chi.URLParam(r, "accountID"),
		ClientFilter: q["client_filter"],
	}

	from, to := q.Get("from_date"), q.Get("to_date")
	if from == "" && to == "" {
		req.Range = timesheet.MonthRange(s.now())
		return req, nil
	}
	rng, err := timesheet.ParseRange(from, to)
	if err != nil {
		return req, err
	}
	req.Range = rng
	return req, nil
}

type errorBody struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rangeErr *timesheet.InvalidRangeError
		upErr    *timely.UpstreamFetchError
		authErr  *timely.AuthenticationError
	)
	switch {
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: rangeErr.Error()})
	case errors.As(err, &authErr):
		s.logger.Error("timely authentication failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), UpstreamStatus: authErr.Status})
	case errors.As(err, &upErr):
		s.logger.Error("timely request failed", "path", r.URL.Path, "status", upErr.Status, "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), UpstreamStatus: upErr.Status})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
