// Package errors provides structured, coded errors for hashsync.
//
// Every error carries a code (e.g. "H100") that maps to a category, a short
// message and a longer explanation. Codes make failures greppable in logs and
// let callers match them with errors.Is regardless of the wrapped detail.
//
// # Error Categories
//
//   - config: templates that cannot compile, invalid configuration files
//   - store: snapshot persistence failures
//   - protocol: malformed websocket messages
//
// # Usage
//
//	err := errors.New("H100").
//	    WithDetail(`template "{a}/{a}" repeats placeholder "a"`).
//	    WithSuggestion("Give every placeholder a distinct name")
//
//	fmt.Println(err.Format())
//	// ERROR H100: Template cannot be compiled
//	//
//	//   template "{a}/{a}" repeats placeholder "a"
//	//
//	//   Hint: Give every placeholder a distinct name
package errors
