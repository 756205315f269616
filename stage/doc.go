// Design note: the C++ source's StackHelper exists to guarantee a stack-
// scoped chain of heap-allocated stages gets destroyed even if a return or
// exception unwinds early. Go's defer plus ordinary garbage collection make
// that adapter unnecessary: a pipeline built from these stages is just a
// value the caller owns, and Close is invoked via defer at the construction
// site. No StackHelper equivalent is implemented.
package stage
