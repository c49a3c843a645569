// Package errors provides structured, actionable error messages for the framer CLI.
//
// Every error carries a stable code, a category and a plain-language
// message. Configuration errors also point at the offending line of the
// config file.
//
// # Error Categories
//
//   - config: the framer.json or framer.toml file is missing or invalid
//   - cli: bad arguments or unreadable input
//   - transport: listeners, connections and request timeouts
//   - protocol: frames that cannot be encoded for the configured layout
//
// # Usage
//
//	err := errors.New("FR102").
//	    WithLocation("framer.toml", 4, 16).
//	    WithSuggestion(`lengthField must be one of "1", "2", "4" or "varint"`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR FR102: Invalid configuration file
//	//
//	//   framer.toml:4:16
//	//
//	//      2 │ [codec]
//	//      3 │ headerOffset = 2
//	//   →  4 │ lengthField = 3
//	//        │                ^
//	//      5 │ byteOrder = "big"
//	//
//	//   Hint: lengthField must be one of "1", "2", "4" or "varint"
package errors
