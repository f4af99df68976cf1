// Usage is a dummy package to showcase how to keep denormalized search
// documents in sync with the entities they embed. See the examples.
package usage

import (
	_ "github.com/manishrjain/denorm/indexer"
	_ "github.com/manishrjain/denorm/req"
	_ "github.com/manishrjain/denorm/search"
	_ "github.com/manishrjain/denorm/store"
	_ "github.com/manishrjain/denorm/x"
)
