package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type paging struct {
	StartFrom int
	PageSize  int
}

// parseGUIDParam reads a GUID path value.
// Expects path parameter: name
func parseGUIDParam(r *http.Request, name, expectedType string) (uuid.UUID, error) {
	return services.ParseGUID(r.PathValue(name), name, expectedType)
}

// parseGUIDQuery reads a required GUID query parameter.
func parseGUIDQuery(r *http.Request, name, expectedType string) (uuid.UUID, error) {
	return services.ParseGUID(r.URL.Query().Get(name), name, expectedType)
}

// parsePaging reads start_from and page_size. Both default to 0.
func parsePaging(r *http.Request) (paging, error) {
	startFrom, err := queryInt(r, "start_from")
	if err != nil {
		return paging{}, err
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		return paging{}, err
	}
	return paging{StartFrom: startFrom, PageSize: pageSize}, nil
}

// parseQueryOptions reads paging plus an optional RFC 3339 effective_time.
func parseQueryOptions(r *http.Request) (models.QueryOptions, paging, error) {
	page, err := parsePaging(r)
	if err != nil {
		return models.QueryOptions{}, paging{}, err
	}
	opts := models.QueryOptions{StartFrom: page.StartFrom, PageSize: page.PageSize}
	if raw := r.URL.Query().Get("effective_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return models.QueryOptions{}, paging{}, apperrors.InvalidParameter("effective_time %q is not an RFC 3339 timestamp", raw)
		}
		opts.EffectiveTime = &t
	}
	return opts, page, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidParameter("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

// parseMergeFlag reads is_merge_update, which defaults to true.
func parseMergeFlag(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("is_merge_update")
	if raw == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidParameter("is_merge_update must be true or false, got %q", raw)
	}
	return v, nil
}

// decodeBody decodes a JSON request body into dst. An empty body leaves dst
// unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.InvalidParameter("invalid request body: %v", err)
	}
	return nil
}
