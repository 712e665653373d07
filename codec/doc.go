// Package codec serializes patches to and from their on-disk blob form.
//
// The blob format is a breaking-change boundary: bytes written by one
// format version must decode bit-exactly forever, so the header carries a
// magic, a format version and an element-type tag, and every change to the
// layout bumps the version.
package codec
