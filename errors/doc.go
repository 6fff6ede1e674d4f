// Package errors provides structured error types for the dxc boundary layer.
//
// Errors are categorized by Phase (where in the compile pipeline the error
// occurred) and Kind (error category). The Error type includes rich context:
// context path, guest export name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindEncoding).
//		Path("args", "2").
//		Detail("argument is not valid UTF-8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingExport("dxc_compile")
//	err := errors.ClosedHandle(errors.PhaseExtract, "result")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
