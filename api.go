// CLAUDE:SUMMARY Loopback control API: chi router over clips, collections, settings, capture toggles and export/import, with optional bearer-token auth.
package clipkeeper

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/clipkeeper/internal/imaging"
	"github.com/hazyhaar/clipkeeper/internal/store"
)

// Router builds the control API. Everything under /api is JSON; when
// an API token is configured it is required as a bearer token.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIToken != "" {
			r.Use(s.requireToken)
		}

		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, s.monitor.Stats())
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := s.store.Stats(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, stats)
		})

		r.Route("/clips", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				clips, err := s.store.List(r.Context(), store.Filter{
					Search:     q.Get("search"),
					Category:   q.Get("category"),
					Favorites:  queryBool(r, "favorites"),
					Snippets:   queryBool(r, "snippets"),
					Collection: int64(queryInt(r, "collection", 0)),
					Limit:      queryInt(r, "limit", 50),
					Offset:     queryInt(r, "offset", 0),
				})
				if err != nil {
					writeError(w, 500, err)
					return
				}
				if clips == nil {
					clips = []store.Clip{}
				}
				writeJSON(w, 200, clips)
			})

			r.Post("/clear", func(w http.ResponseWriter, r *http.Request) {
				n, err := s.store.ClearUnpinned(r.Context())
				if err != nil {
					writeError(w, 500, err)
					return
				}
				writeJSON(w, 200, map[string]int{"cleared": n})
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					id, err := clipID(r)
					if err != nil {
						writeError(w, 400, err)
						return
					}
					c, err := s.store.Get(r.Context(), id)
					if err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					writeJSON(w, 200, c)
				})

				r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
					id, err := clipID(r)
					if err != nil {
						writeError(w, 400, err)
						return
					}
					if err := s.store.Delete(r.Context(), id); err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					writeJSON(w, 200, map[string]string{"status": "deleted"})
				})

				// Paste-from-history: bump the clip and mark its hash
				// observed so the monitor does not recapture the paste.
				// Writing to the clipboard stays the caller's job.
				r.Post("/use", func(w http.ResponseWriter, r *http.Request) {
					id, err := clipID(r)
					if err != nil {
						writeError(w, 400, err)
						return
					}
					if err := s.store.Touch(r.Context(), id); err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					c, err := s.store.Get(r.Context(), id)
					if err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					s.monitor.ObserveHash(c.Hash)
					writeJSON(w, 200, c)
				})

				flag := func(set func(context.Context, int64, bool) error) http.HandlerFunc {
					return func(w http.ResponseWriter, r *http.Request) {
						id, err := clipID(r)
						if err != nil {
							writeError(w, 400, err)
							return
						}
						var req struct {
							On bool `json:"on"`
						}
						if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
							writeError(w, 400, err)
							return
						}
						if err := set(r.Context(), id, req.On); err != nil {
							writeError(w, statusFor(err), err)
							return
						}
						writeJSON(w, 200, map[string]bool{"on": req.On})
					}
				}
				r.Post("/pin", flag(s.store.SetPinned))
				r.Post("/favorite", flag(s.store.SetFavorite))
				r.Post("/snippet", flag(s.store.SetSnippet))

				r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
					id, err := clipID(r)
					if err != nil {
						writeError(w, 400, err)
						return
					}
					var req struct {
						Content string `json:"content"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						writeError(w, 400, err)
						return
					}
					if err := s.store.UpdateText(r.Context(), id, req.Content); err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					c, err := s.store.Get(r.Context(), id)
					if err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					writeJSON(w, 200, c)
				})

				r.Put("/collection", func(w http.ResponseWriter, r *http.Request) {
					id, err := clipID(r)
					if err != nil {
						writeError(w, 400, err)
						return
					}
					var req struct {
						CollectionID *int64 `json:"collection_id"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						writeError(w, 400, err)
						return
					}
					var cid int64
					if req.CollectionID != nil {
						cid = *req.CollectionID
					}
					if err := s.store.SetCollection(r.Context(), id, cid); err != nil {
						writeError(w, statusFor(err), err)
						return
					}
					writeJSON(w, 200, map[string]string{"status": "ok"})
				})
			})
		})

		r.Get("/collections", func(w http.ResponseWriter, r *http.Request) {
			cols, err := s.store.Collections(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if cols == nil {
				cols = []store.Collection{}
			}
			writeJSON(w, 200, cols)
		})

		r.Post("/collections", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			id, err := s.store.AddCollection(r.Context(), req.Name)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, 201, map[string]any{"id": id, "name": req.Name})
		})

		r.Patch("/collections/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := clipID(r)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if err := s.store.RenameCollection(r.Context(), id, req.Name); err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, 200, map[string]any{"id": id, "name": req.Name})
		})

		r.Delete("/collections/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, err := clipID(r)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			if err := s.store.DeleteCollection(r.Context(), id); err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted"})
		})

		r.Get("/settings", func(w http.ResponseWriter, r *http.Request) {
			settings, err := s.store.Settings(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, settings)
		})

		r.Put("/settings/{key}", func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, "key")
			var req struct {
				Value string `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if err := s.putSetting(r.Context(), key, req.Value); err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, 200, map[string]string{"key": key, "value": req.Value})
		})

		r.Post("/pause", func(w http.ResponseWriter, r *http.Request) {
			if err := s.monitor.SetPaused(r.Context(), true); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]bool{"paused": true})
		})

		r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
			if err := s.monitor.SetPaused(r.Context(), false); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]bool{"paused": false})
		})

		r.Post("/incognito", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				On bool `json:"on"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if err := s.monitor.SetIncognito(r.Context(), req.On); err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]bool{"incognito": req.On})
		})

		r.Post("/export", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Path string `json:"path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			if req.Path == "" {
				writeError(w, 400, errors.New("path required"))
				return
			}
			f, err := os.Create(req.Path)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			err = s.store.ExportJSON(r.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"path": req.Path})
		})

		r.Post("/import", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Path string `json:"path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
			f, err := os.Open(req.Path)
			if err != nil {
				writeError(w, 400, err)
				return
			}
			defer f.Close()
			res, err := s.store.ImportJSON(r.Context(), f, s.importBlob(r.Context()))
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, res)
		})
	})

	return r
}

// putSetting routes paused/incognito through the monitor so the live
// toggles track the stored value; any other known key writes straight
// to the settings table.
func (s *Service) putSetting(ctx context.Context, key, value string) error {
	switch key {
	case "paused", "incognito":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
		if key == "paused" {
			return s.monitor.SetPaused(ctx, on)
		}
		return s.monitor.SetIncognito(ctx, on)
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return err
	}
	if _, ok := settings[key]; !ok {
		return fmt.Errorf("unknown setting %q: %w", key, store.ErrNotFound)
	}
	return s.store.SetSetting(ctx, key, value)
}

// importBlob regenerates blob files for image clips during import. The
// thumbnail is re-rendered from the imported bytes; when that fails the
// thumb path falls back to the full image.
func (s *Service) importBlob(ctx context.Context) store.BlobWriter {
	return func(hash string, data []byte) (string, string, error) {
		imagePath, err := s.blobs.WriteImage(ctx, hash, data)
		if err != nil {
			return "", "", err
		}
		thumbPath := imagePath
		if res, err := imaging.Process(data, 0, 85); err == nil && res.Thumb != nil {
			if p, err := s.blobs.WriteThumb(ctx, hash, res.Thumb); err == nil {
				thumbPath = p
			}
		}
		return imagePath, thumbPath, nil
	}
}

// serveAPI runs the HTTP server until ctx is canceled, then drains it.
func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api: listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// --- Middleware ---

func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Service) requireToken(next http.Handler) http.Handler {
	token := []byte(s.cfg.APIToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), token) != 1 {
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "1" || v == "true"
}

func clipID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 404
	case errors.Is(err, store.ErrHashCollision), errors.Is(err, store.ErrNameTaken):
		return 409
	default:
		return 500
	}
}
