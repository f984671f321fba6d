package server

import (
	"io/fs"
	"net/http"
)

// fileHandler serves a single file from assets.
func fileHandler(assets fs.FS, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, assets, name)
	})
}

func subFS(assets fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		// only reachable with an invalid dir literal
		panic(err)
	}
	return sub
}
