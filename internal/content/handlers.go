package content

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/fieldcase"
)

// HandleList handles GET /api/v1/records/{kind}.
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := KindByName(chi.URLParam(r, "kind"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		records, err := NewStore(pool).List(r.Context(), kind)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		out := make([]interface{}, 0, len(records))
		for _, record := range records {
			out = append(out, fieldcase.ToApplication(record, kind.Fields))
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"records": out,
		})
	}
}

// HandleGet handles GET /api/v1/records/{kind}/{record_id}.
func HandleGet(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := KindByName(chi.URLParam(r, "kind"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		record, err := NewStore(pool).Get(r.Context(), kind, chi.URLParam(r, "record_id"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"record": fieldcase.ToApplication(record, kind.Fields),
		})
	}
}

// HandleCreate handles POST /api/v1/records/{kind} (admin only). The body
// arrives in application naming and is translated before it touches SQL.
func HandleCreate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := KindByName(chi.URLParam(r, "kind"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		fields, ok := decodeRecordBody(w, r, kind)
		if !ok {
			return
		}

		record, err := NewStore(pool).Insert(r.Context(), kind, fields)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		apperrors.WriteJSON(w, http.StatusCreated, map[string]interface{}{
			"ok":     true,
			"record": fieldcase.ToApplication(record, kind.Fields),
		})
	}
}

// HandleUpdate handles PUT /api/v1/records/{kind}/{record_id} (admin only).
func HandleUpdate(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := KindByName(chi.URLParam(r, "kind"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		fields, ok := decodeRecordBody(w, r, kind)
		if !ok {
			return
		}

		record, err := NewStore(pool).Update(r.Context(), kind, chi.URLParam(r, "record_id"), fields)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"record": fieldcase.ToApplication(record, kind.Fields),
		})
	}
}

// HandleDelete handles DELETE /api/v1/records/{kind}/{record_id} (admin only).
func HandleDelete(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := KindByName(chi.URLParam(r, "kind"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := NewStore(pool).Delete(r.Context(), kind, chi.URLParam(r, "record_id")); err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"deleted": true,
		})
	}
}

func decodeRecordBody(w http.ResponseWriter, r *http.Request, kind Kind) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
		return nil, false
	}

	storage, ok := fieldcase.ToStorage(body, kind.Fields).(map[string]interface{})
	if !ok {
		apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
		return nil, false
	}
	return storage, true
}
