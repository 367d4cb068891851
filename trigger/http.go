package trigger

import "time"

// HTTPRequestTimeout is the default timeout for all HTTP requests to the Dataverse Web API.
const HTTPRequestTimeout = 60 * time.Second

// DefaultDispatchTimeout bounds a single journey trigger call.
const DefaultDispatchTimeout = 5 * time.Second
