package storage

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// defaultMaxLevel is the default max level of the skip list
	defaultMaxLevel int32 = 12

	// maxAllowedLevel is the upper bound on the max level of the skip list
	maxAllowedLevel int32 = 18

	defaultProbability float64 = 0.5
)

// skipList keeps the records of an object store ordered by key.
// It can be accessed concurrently.
type skipList struct {
	mutex       sync.RWMutex
	head        *skipListNode
	maxLevel    int32
	comparator  Comparator
	probability float64
	rnd         *rand.Rand
	length      int
}

// get finds an element by key.
//
// returns a pointer to the skip list node if the key is found.
// returns nil in case the node with key is not found.
func (s *skipList) get(key []byte) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	next := s.findEqualOrGreater(key)
	if next != nil && s.comparator.Compare(next.key, key) == 0 {
		return next
	}

	log.WithFields(log.Fields{"key": string(key)}).Debug("storage::skiplist::get; node not found")
	return nil
}

// set inserts a value in the list associated with the specified key.
//
// Overwrites the data if the key already exists.
// returns a pointer to the inserted/modified skip list node.
func (s *skipList) set(key, value []byte) *skipListNode {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prevs := s.getPreviousNodesForAllLevels(key)

	if element := prevs[0].next[0]; element != nil && s.comparator.Compare(element.key, key) == 0 {
		log.WithFields(log.Fields{"key": string(key)}).Debug("storage::skiplist::set; overriding the existing value")
		element.value = value
		return element
	}

	element := &skipListNode{
		key:   key,
		value: value,
		next:  make([]*skipListNode, s.randomLevel()),
	}

	for i := range element.next {
		element.next[i] = prevs[i].next[i]
		prevs[i].next[i] = element
	}
	s.length++

	return element
}

// delete deletes the node associated with the specified key.
//
// returns a pointer to the removed skip list node.
// returns nil if the node isn't found.
func (s *skipList) delete(key []byte) *skipListNode {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prevs := s.getPreviousNodesForAllLevels(key)

	if element := prevs[0].next[0]; element != nil && s.comparator.Compare(element.key, key) == 0 {
		for k, v := range element.next {
			prevs[k].next[k] = v
		}
		s.length--
		return element
	}

	log.WithFields(log.Fields{"key": string(key)}).Debug("storage::skiplist::delete; key not found")
	return nil
}

// len returns the number of nodes in the list.
func (s *skipList) len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.length
}

// getPreviousNodesForAllLevels returns the previous nodes at each level for passed in key.
// requires the lock.
func (s *skipList) getPreviousNodesForAllLevels(key []byte) []*skipListNode {
	prevs := make([]*skipListNode, s.maxLevel)
	prev := s.head

	for i := s.maxLevel - 1; i >= 0; i-- {
		next := prev.next[i]

		// while the user key is bigger than next.key
		for next != nil && s.comparator.Compare(key, next.key) == 1 {
			prev = next
			next = next.next[i]
		}

		prevs[i] = prev
	}

	return prevs
}

// findEqualOrGreater returns the first node with key >= the passed key. nil key denotes -inf.
// requires the lock.
func (s *skipList) findEqualOrGreater(key []byte) *skipListNode {
	if key == nil {
		return s.head.next[0]
	}

	var next *skipListNode
	prev := s.head

	for i := s.maxLevel - 1; i >= 0; i-- {
		next = prev.next[i]

		for next != nil && s.comparator.Compare(key, next.key) == 1 {
			prev = next
			next = next.next[i]
		}
	}

	return next
}

// getEqualOrGreater returns the skiplist node with key >= the passed key.
// nil key denotes -inf i.e. the smallest.
// obtains a read lock on the skip list internally.
// return nil if no such node exists.
func (s *skipList) getEqualOrGreater(key []byte) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.findEqualOrGreater(key)
}

// successor returns the node after n at level 0 under the read lock.
func (s *skipList) successor(n *skipListNode) *skipListNode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return n.next[0]
}

// randomLevel requires the write lock since rand.Rand isn't thread safe.
func (s *skipList) randomLevel() int32 {
	var level int32 = 1

	for level < s.maxLevel && s.rnd.Float64() > s.probability {
		level++
	}

	return level
}

// newSkipListIterator returns a new skip list iterator on the skip list.
func (s *skipList) newSkipListIterator() *skipListIterator {
	return &skipListIterator{
		skipList: s,
		node:     nil,
	}
}

type skipListNode struct {
	key   []byte
	value []byte
	next  []*skipListNode
}

// skipListIterator is the iterator over the key-value pairs of the skip list.
// It relies on the internal synchronization of the skiplist.
// Multiple goroutines can use different iterators
// but two goroutines using the same iterator requires external synchronization.
type skipListIterator struct {
	skipList *skipList
	node     *skipListNode
}

var _ Iterator = (*skipListIterator)(nil)

func (sli *skipListIterator) Valid() bool {
	return sli.node != nil
}

func (sli *skipListIterator) SeekToFirst() {
	sli.node = sli.skipList.getEqualOrGreater(nil)
}

func (sli *skipListIterator) Seek(target []byte) {
	sli.node = sli.skipList.getEqualOrGreater(target)
}

func (sli *skipListIterator) Next() {
	if !sli.Valid() {
		panic("Next on an invalid iterator position in skiplist.")
	}
	sli.node = sli.skipList.successor(sli.node)
}

func (sli *skipListIterator) Key() []byte {
	if !sli.Valid() {
		panic("Key on an invalid iterator position in skiplist.")
	}
	return sli.node.key
}

func (sli *skipListIterator) Value() []byte {
	if !sli.Valid() {
		panic("Value on an invalid iterator position in skiplist.")
	}
	return sli.node.value
}

// newSkipList creates a new skipList
//
// Passing 0 for maxLevel leads to a default max level.
func newSkipList(maxLevel int32, comparator Comparator) *skipList {
	if maxLevel == 0 {
		maxLevel = defaultMaxLevel
	}
	if maxLevel < 1 || maxLevel > maxAllowedLevel {
		panic("maxLevel for the SkipList must be a positive integer <= 18")
	}

	return &skipList{
		head:        &skipListNode{next: make([]*skipListNode, maxLevel)},
		maxLevel:    maxLevel,
		comparator:  comparator,
		probability: defaultProbability,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}
