package region

import "regioncache/errs"

// errClosed / errDestroying are the two fast-fail checks every public
// entry point runs before acquiring any heavy lock (spec §5's "destroy
// pending" rule and the analogous closed-region check).
func errClosed() error     { return errs.ErrRegionClosed }
func errDestroying() error { return errs.ErrRegionDestroying }
