// Package fetch is the network layer of the packaging pipeline.
//
// A Fetcher turns a URL into a status code and a byte stream. Client is the
// HTTP implementation; with a Cache attached it replays ETag/Last-Modified
// validators and serves 304 responses from disk. Open adds the status policy
// shared by every caller: 200 and 304 are fine, anything else is a *StatusError.
package fetch
