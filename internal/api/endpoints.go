package api

// Paths relative to the API base URL (for example http://host:8080/api).
const (
	PathHealth    = "/health"
	PathSimulator = "/c12sim"
	PathQuery     = PathSimulator + "/query"
	PathJobStatus = PathQuery + "/status"
	PathBackends  = PathSimulator + "/backends"
	PathParams    = PathSimulator + "/params"
	PathMaxJobs   = PathSimulator + "/maxjobs"
	PathUserJobs  = PathSimulator + "/jobs"
	PathGetJob    = PathSimulator + "/job"
)
