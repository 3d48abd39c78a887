// Package intake turns host change notifications into units of work.
//
// The webhook handler decodes the host envelope and acknowledges at once.
// Newly added movies and episodes first pass through the Poller, which waits
// (under a shared semaphore) until the host reports a decodable video stream.
// Everything then lands in the Coalescer, which groups events by their parent
// container and dispatches one WorkItem per key once the key has been quiet
// for the debounce window.
package intake
