package admin

import (
	"net/http"
	"sort"

	"github.com/goccy/go-json"
)

// ModuleHealth is the state of one module index
type ModuleHealth struct {
	Module     string `json:"module"`
	Ready      bool   `json:"ready"`
	Properties int    `json:"properties"`
	Groups     int    `json:"groups"`
	BuildID    string `json:"build_id,omitempty"`
}

// Health is the /healthz body
type Health struct {
	Status  string         `json:"status"`
	Modules []ModuleHealth `json:"modules"`
}

// Status is "ok" once every module has an index, "indexing" before
func Status(indexes Indexes) Health {
	h := Health{Status: "ok", Modules: []ModuleHealth{}}
	if indexes == nil {
		return h
	}

	modules := indexes.Modules()
	sort.Strings(modules)
	for _, id := range modules {
		mh := ModuleHealth{Module: id}
		if idx, ok := indexes.Get(id); ok {
			mh.Ready = true
			mh.Properties = idx.Len()
			mh.Groups = len(idx.Groups())
			mh.BuildID = idx.BuildID()
		} else {
			h.Status = "indexing"
		}
		h.Modules = append(h.Modules, mh)
	}
	return h
}

func healthHandler(indexes Indexes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := Status(indexes)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	}
}
