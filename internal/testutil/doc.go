// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversations and scripted models. They are
// not intended for production usage.
package testutil
