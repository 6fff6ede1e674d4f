// Package include adapts caller-supplied resolution callbacks to the guest
// compiler's include handler contract.
//
// During compilation the guest may request the content of files named by
// #include directives. With no callbacks configured those requests pass
// through to the guest's own default resolver. When a Callbacks pair is
// given to Compile, a Bridge is constructed for that single call and every
// request is redirected to it: the wide filename is decoded (an undecodable
// name becomes the empty string), Resolve is invoked with the caller's
// opaque context, and the returned content is copied into guest memory as
// an UTF-8 payload. Release is invoked exactly once per request, whatever
// the outcome, so the caller can free anything Resolve allocated.
//
// The guest invokes the bridge synchronously and possibly reentrantly
// while walking nested includes; the bridge itself holds no state beyond a
// request counter and is discarded when the compile call returns.
package include
