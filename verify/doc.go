// Package verify cross-checks a conversion with an independent decoder: the
// module is compiled by wazero, with custom sections retained, and the
// function imports, function exports and precompiled object it sees are
// compared with what glue emitted.
//
//	report, err := verify.Check(ctx, data)
//	if err != nil {
//	    return err
//	}
//	return report.Compare(summary, object)
package verify
