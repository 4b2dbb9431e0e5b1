package storage

type batchOpKind uint8

const (
	batchOpSet batchOpKind = iota
	batchOpDelete
)

type batchOp struct {
	kind  batchOpKind
	key   []byte
	value []byte
}

// WriteBatch contains a number of Set/Delete records applied atomically by Store.Apply.
// Records are applied in the order they were added.
type WriteBatch struct {
	ops []batchOp
}

// Set adds a value for the given key in the write batch.
func (wb *WriteBatch) Set(key, value []byte) {
	wb.ops = append(wb.ops, batchOp{kind: batchOpSet, key: key, value: value})
}

// Delete adds a delete entry for the given key in the write batch.
func (wb *WriteBatch) Delete(key []byte) {
	wb.ops = append(wb.ops, batchOp{kind: batchOpDelete, key: key})
}

// Count returns the number of records in the batch.
func (wb *WriteBatch) Count() int {
	return len(wb.ops)
}

// Empty returns true if the batch has no records.
func (wb *WriteBatch) Empty() bool {
	return len(wb.ops) == 0
}

// Clear removes all the records from the batch.
func (wb *WriteBatch) Clear() {
	wb.ops = wb.ops[:0]
}
