package registry

import "errors"

// ErrCycleDetected is returned by AddReference when the requested edge
// would close a cycle in the program's lineage graph.
var ErrCycleDetected = errors.New("registry: adding this reference would create a cycle")
