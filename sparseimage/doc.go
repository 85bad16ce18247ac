// Package sparseimage implements the run-length sparse-image wire format
// shared by every stage of a composite: compressing a dense framebuffer
// region down to its active pixels, compositing two sparse images under a
// z-buffer or blend operator (decoding both operands first), and splitting
// or interlacing a sparse image for distribution across Radix-k's rounds.
//
// Everything here is a pure buffer transform; nothing in this package
// touches a network, a goroutine, or global state.
package sparseimage
