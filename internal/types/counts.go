package types

// CountUnknown marks a counter the provider payload did not contain. The
// persistence layer preserves the stored value instead of regressing it.
const CountUnknown int64 = -1
