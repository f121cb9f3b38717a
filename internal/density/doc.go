// Package density ranks sample sites by the length of line features (road
// segments) found within a fixed radius of each site.
//
// A run resolves the extent of a FeatureSet, lays a regular grid over it,
// sums for every grid point the full length of each feature touching the
// disk around that point, and selects the densest points. Distances are
// planar, so features and grid must share a projected frame such as
// EPSG:3857; the projection package converts from longitude/latitude.
package density
