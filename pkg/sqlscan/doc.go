// Package sqlscan provides a small, dialect-tolerant SQL lexer.
//
// It is not a parser. It understands enough lexical structure (strings, quoted
// identifiers, comments, dollar quoting, statement separators) for the heuristic
// consumers in this module: statement classification, access-policy extraction and
// pagination rewriting. Keeping those consumers on tokens instead of raw regexes means
// keywords inside string literals and comments never count as SQL.
package sqlscan
