// Package task runs the service's background work. The only scheduled task
// is the expiry sweep, which revokes claims whose expiry has passed. It is
// owned by the application: started and stopped explicitly, and callable
// synchronously through RunOnce.
package task
