package rest

import (
	"fmt"
	"net/http"
	"os"

	"loan-engine/internal/clients"

	"github.com/go-chi/chi/v5"
)

// FilesHandler serves documents kept by the local storage driver under
// /files/{file}. The download name drops the random storage prefix.
func FilesHandler(storage *clients.StorageClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path := storage.Path(file)

		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				ErrorNotFound(w, "file not found")
				return
			}
			ErrorInternal(w, "failed to access file")
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clients.OriginalName(file)))
		http.ServeFile(w, r, path)
	}
}
