// Package c12test provides an in-process fake of the C12 simulator API for tests.
package c12test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// Token is the bearer token accepted by a server built with NewServer.
const Token = "test-token"

// BellResult is a finished two-qubit Bell state with one barrier snapshot.
const BellResult = `{
	"counts": {"00": 512, "11": 512},
	"statevector": ["0.7071067811865475+0j", "0j", "0j", "0.7071067811865475+0j"],
	"density_matrix": [
		["0.5+0j", "0j", "0j", "0.5+0j"],
		["0j", "0j", "0j", "0j"],
		["0j", "0j", "0j", "0j"],
		["0.5+0j", "0j", "0j", "0.5+0j"]
	],
	"states": {
		"statevector": {"sv1": ["0.7071067811865475+0j", "0j", "0.7071067811865475+0j", "0j"]},
		"density_matrix": {"dm1": [
			["0.5+0j", "0j", "0.5+0j", "0j"],
			["0j", "0j", "0j", "0j"],
			["0.5+0j", "0j", "0.5+0j", "0j"],
			["0j", "0j", "0j", "0j"]
		]}
	}
}`

// DefaultBackends mirrors the backends advertised by a stock simulator.
var DefaultBackends = []domain.BackendInfo{
	{Name: "c12sim-iswap", NQubits: 5, BasisGates: []string{"rx", "ry", "rz", "iswap"}, MaxShots: 4096, MaxCircuits: 1},
	{Name: "c12sim-cx", NQubits: 5, BasisGates: []string{"rx", "ry", "rz", "cx"}, MaxShots: 4096, MaxCircuits: 1},
}

// Job is a fake server-side job. Statuses are served in order on every
// poll; the last one sticks.
type Job struct {
	UUID     string
	Statuses []domain.JobStatus
	Result   json.RawMessage
	Errors   string
	Params   map[string]any

	polls int
}

func (j *Job) current() domain.JobStatus {
	if len(j.Statuses) == 0 {
		return domain.StatusFinished
	}
	i := j.polls
	if i >= len(j.Statuses) {
		i = len(j.Statuses) - 1
	}
	return j.Statuses[i]
}

func (j *Job) advance() domain.JobStatus {
	status := j.current()
	j.polls++
	return status
}

// Response is a canned reply that replaces the normal handler of a path.
type Response struct {
	Status int
	Body   string
}

// Server is a fake C12 API served over httptest.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	backends       []domain.BackendInfo
	jobs           map[string]*Job
	order          []string
	calls          map[string]int
	overrides      map[string]Response
	physicalParams map[string]any
	maxJobs        int

	// NewJob, when set, shapes every job created by POST /c12sim/query.
	NewJob func(params map[string]any) *Job
}

// NewServer starts a fake API. Call Close when done.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		backends:       DefaultBackends,
		jobs:           make(map[string]*Job),
		calls:          make(map[string]int),
		overrides:      make(map[string]Response),
		physicalParams: map[string]any{"t1": 50.0, "t2": 70.0},
		maxJobs:        3,
	}

	router := gin.New()
	router.Use(s.record, s.override)

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	sim := api.Group("/c12sim", s.auth)
	sim.POST("/query", s.startJob)
	sim.GET("/query", s.pollJob)
	sim.GET("/query/status", s.jobStatus)
	sim.GET("/job", s.getJob)
	sim.GET("/jobs", s.listJobs)
	sim.GET("/backends", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"backends": s.backends})
	})
	sim.GET("/params", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"physical_params": s.physicalParams})
	})
	sim.GET("/maxjobs", func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"maxjobs": s.maxJobs})
	})

	s.Server = httptest.NewServer(router)
	return s
}

// BaseURL is the API root to hand to api.NewClient.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// SetBackends replaces the advertised backends.
func (s *Server) SetBackends(backends []domain.BackendInfo) {
	s.mu.Lock()
	s.backends = backends
	s.mu.Unlock()
}

// AddJob registers a job so it can be polled without being started.
func (s *Server) AddJob(job *Job) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.UUID == "" {
		job.UUID = uuid.NewString()
	}
	s.jobs[job.UUID] = job
	s.order = append(s.order, job.UUID)
	return job
}

// Job returns a registered job.
func (s *Server) Job(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Override replaces the handler of path (e.g. "/api/c12sim/backends").
func (s *Server) Override(path string, resp Response) {
	s.mu.Lock()
	s.overrides[path] = resp
	s.mu.Unlock()
}

// Calls reports how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls[c.Request.URL.Path]++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) override(c *gin.Context) {
	s.mu.Lock()
	resp, ok := s.overrides[c.Request.URL.Path]
	s.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	c.Data(resp.Status, "application/json", []byte(resp.Body))
	c.Abort()
}

func (s *Server) auth(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}
	c.Next()
}

func (s *Server) startJob(c *gin.Context) {
	var params map[string]any
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	qasm, _ := params["qasm_str"].(string)
	if strings.TrimSpace(qasm) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "qasm_str is required"})
		return
	}

	var job *Job
	if s.NewJob != nil {
		job = s.NewJob(params)
	}
	if job == nil {
		job = &Job{
			Statuses: []domain.JobStatus{domain.StatusQueued, domain.StatusRunning, domain.StatusFinished},
			Result:   json.RawMessage(BellResult),
		}
	}
	job.Params = params
	s.AddJob(job)

	c.JSON(http.StatusOK, gin.H{"job_uuid": job.UUID, "transpiled": qasm})
}

func (s *Server) lookup(c *gin.Context) (*Job, bool) {
	s.mu.Lock()
	job, ok := s.jobs[c.Query("job_uuid")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
	}
	return job, ok
}

func (s *Server) pollJob(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	status := job.advance()
	s.mu.Unlock()

	resp := gin.H{"status": status, "results": nil, "errors": nil}
	switch status {
	case domain.StatusFinished:
		resp["results"] = job.Result
	case domain.StatusError:
		resp["errors"] = job.Errors
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) jobStatus(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	status := job.advance()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) jobRecord(job *Job) gin.H {
	status := job.current()
	rec := gin.H{
		"uuid":      job.UUID,
		"status":    status,
		"task":      job.Params["qasm_str"],
		"task_orig": job.Params["qasm_str"],
		"options":   gin.H{"shots": job.Params["num_shots"], "result": job.Params["result"]},
		"result":    nil,
		"errors":    nil,
	}
	if status == domain.StatusFinished {
		rec["result"] = job.Result
	}
	if status == domain.StatusError {
		rec["errors"] = job.Errors
	}
	return rec
}

func (s *Server) getJob(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[c.Query("job_uuid")]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"job": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": s.jobRecord(job)})
}

func (s *Server) listJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]gin.H, 0, limit)
	for i := offset; i < len(s.order) && len(jobs) < limit; i++ {
		jobs = append(jobs, s.jobRecord(s.jobs[s.order[i]]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
