// Package model defines the value types of the stoicheia engine: labels,
// axes, patches, selectors and bounding boxes.
//
// All types in this package are plain in-memory values. Persistence and
// label/index translation live in the store package; the wire format for
// patches lives in the codec package.
package model
