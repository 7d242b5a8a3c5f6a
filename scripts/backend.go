// Backend is a demo HTTP server for trying the gateway locally. Its pages and
// API responses link back to the server's own internal address, which is what
// the gateway's rewrite rules replace.
//
// Usage:
//
//	go run backend.go -port 8081 -prefix /v1
//
// Pair it with the routes and rewrites in config/config.yaml.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Course represents a course entity with unique identifier.
type Course struct {
	UUID        string `json:"uuid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Self        string `json:"self"`
}

// CreateCourseRequest is the request payload for creating a course.
type CreateCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var indexPage = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><script src="{{.Base}}/app.js"></script></head>
<body>
<h1>Courses</h1>
<ul>{{range .Courses}}<li><a href="{{$.Base}}/courses/{{.UUID}}">{{.Title}}</a></li>{{end}}</ul>
<img src="{{.Base}}/logo.png">
</body>
</html>
`))

// 1x1 transparent PNG.
var logo = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	prefix := flag.String("prefix", "/v1", "path prefix the gateway forwards to")
	flag.Parse()

	base := fmt.Sprintf("http://localhost:%d%s", *port, *prefix)

	var (
		mu      sync.RWMutex
		courses []Course
	)

	mux := http.NewServeMux()

	mux.HandleFunc(*prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request: method=%s path=%s host=%s", r.Method, r.URL.Path, r.Host)

		mu.RLock()
		defer mu.RUnlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		indexPage.Execute(w, map[string]any{"Base": base, "Courses": courses})
	})

	mux.HandleFunc(*prefix+"/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprintf(w, "fetch(%q).then(r => r.json()).then(console.log);\n", base+"/courses")
	})

	mux.HandleFunc(*prefix+"/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(logo)
	})

	mux.HandleFunc(*prefix+"/courses", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.RLock()
			b, _ := json.Marshal(map[string]any{"courses": courses, "self": base + "/courses"})
			mu.RUnlock()

			w.Header().Set("Content-Type", "application/json")
			w.Write(b)

		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			log.Printf("request: method=%s path=%s from=%s body=%s", r.Method, r.URL.Path, r.RemoteAddr, string(body))

			var req CreateCourseRequest
			if len(body) > 0 {
				if err := json.Unmarshal(body, &req); err != nil {
					http.Error(w, "invalid json", http.StatusBadRequest)
					return
				}
			}
			if req.Title == "" {
				req.Title = "Default Course"
			}

			id := uuid.NewString()
			course := Course{
				UUID:        id,
				Title:       req.Title,
				Description: req.Description,
				Self:        base + "/courses/" + id,
			}

			mu.Lock()
			courses = append(courses, course)
			mu.Unlock()

			b, _ := json.Marshal(map[string]any{"course": course})
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Location", course.Self)
			w.WriteHeader(http.StatusCreated)
			w.Write(b)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// probed by the gateway health checker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting backend on %s with base %s", addr, base)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
