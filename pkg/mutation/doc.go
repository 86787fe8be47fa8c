// Package mutation runs every state-changing operation through the same fixed
// sequence: authorize the caller, perform the change and append its audit
// entry in one transaction, commit, then signal view invalidation.
//
// Services supply a Func that performs the change and describes it as a
// Result; the pipeline owns authorization, the transaction and auditing.
package mutation
