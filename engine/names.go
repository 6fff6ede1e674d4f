package engine

// Guest export names. The compiler module is a WASI reactor: because the
// native toolchain is statically linked into it, the module-lifecycle
// entry points that a shared library would run on load/unload are explicit
// exports the host invokes instead.
const (
	// ExportMalloc allocates memory in guest linear memory.
	// Signature: malloc(size: i32) -> i32 (pointer, 0 on failure)
	ExportMalloc = "malloc"

	// ExportFree releases memory allocated with malloc.
	// Signature: free(ptr: i32)
	ExportFree = "free"

	// ExportInitialize runs the toolchain's module-lifecycle setup.
	// Must be called before any other dxc_* export, once per 0->1
	// transition of live compiler handles.
	// Signature: dxc_initialize() -> i32 (0 on success)
	ExportInitialize = "dxc_initialize"

	// ExportShutdown runs the toolchain's module-lifecycle teardown,
	// on the 1->0 transition of live compiler handles.
	// Signature: dxc_shutdown()
	ExportShutdown = "dxc_shutdown"

	// ExportCompilerCreate constructs a compiler service instance and
	// returns a guest reference (0 on failure).
	// Signature: dxc_compiler_create() -> i32
	ExportCompilerCreate = "dxc_compiler_create"

	// ExportCompilerRelease releases a compiler service reference.
	// Signature: dxc_compiler_release(compiler: i32)
	ExportCompilerRelease = "dxc_compiler_release"

	// ExportCompile runs one compilation. Source is UTF-8 (pointer +
	// byte length, not null-terminated); argv is a wide-string pointer
	// table of argc entries; flags bit 0 selects the host include
	// handler. Returns a result reference, 0 only on internal failure.
	// Signature: dxc_compile(compiler, src_ptr, src_len, argv, argc, flags: i32) -> i32
	ExportCompile = "dxc_compile"

	// ExportResultGetError returns an addref'd diagnostic blob, or 0
	// when the compile produced no diagnostics.
	// Signature: dxc_result_get_error(result: i32) -> i32
	ExportResultGetError = "dxc_result_get_error"

	// ExportResultGetObject returns an addref'd object-code blob, or 0
	// when compilation failed.
	// Signature: dxc_result_get_object(result: i32) -> i32
	ExportResultGetObject = "dxc_result_get_object"

	// ExportResultRelease releases a result reference.
	// Signature: dxc_result_release(result: i32)
	ExportResultRelease = "dxc_result_release"

	// ExportBlobPtr returns the payload pointer of a blob.
	// Signature: dxc_blob_ptr(blob: i32) -> i32
	ExportBlobPtr = "dxc_blob_ptr"

	// ExportBlobLen returns the payload byte length of a blob.
	// Signature: dxc_blob_len(blob: i32) -> i32
	ExportBlobLen = "dxc_blob_len"

	// ExportBlobRelease releases a blob reference.
	// Signature: dxc_blob_release(blob: i32)
	ExportBlobRelease = "dxc_blob_release"
)

// requiredExports is checked at instantiation so a mismatched guest build
// fails fast instead of trapping mid-compile.
var requiredExports = []string{
	ExportMalloc,
	ExportFree,
	ExportInitialize,
	ExportShutdown,
	ExportCompilerCreate,
	ExportCompilerRelease,
	ExportCompile,
	ExportResultGetError,
	ExportResultGetObject,
	ExportResultRelease,
	ExportBlobPtr,
	ExportBlobLen,
	ExportBlobRelease,
}

// Host module and function names the guest imports.
const (
	HostModule         = "mach_dxc"
	HostIncludeResolve = "include_resolve"
)
