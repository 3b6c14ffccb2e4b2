package metastore

import (
	"bytes"

	"rainlang.xyz/rainmeta/magic"
	"rainlang.xyz/rainmeta/meta"
	"rainlang.xyz/rainmeta/metahash"
)

// DotrainEnvelope wraps dotrain source text in its singleton envelope.
func DotrainEnvelope(text string) meta.Envelope {
	return meta.Envelope{
		Payload:     []byte(text),
		MagicNumber: magic.DotrainV1,
		ContentType: meta.ContentTypeOctetStream,
	}
}

// DotrainHash returns the meta hash of text as a dotrain singleton.
func DotrainHash(text string) (metahash.Hash, error) {
	return meta.Hash([]meta.Envelope{DotrainEnvelope(text)}, false)
}

// StoreDotrain caches text as the dotrain meta of uri and returns its hash.
// If uri was mapped to a different hash, that hash is returned as old and its
// cache entry is evicted unless keepOld is set or another uri still maps to
// it. old is the zero hash when uri was unmapped.
func (s *Store) StoreDotrain(text, uri string, keepOld bool) (hash, old metahash.Hash, err error) {
	b, err := meta.Encode(DotrainEnvelope(text))
	if err != nil {
		return metahash.Zero, metahash.Zero, err
	}
	hash = metahash.Sum(b)

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, mapped := s.dotrainCache[uri]
	s.dotrainCache[uri] = hash
	s.putLocked(hash, b)
	if !mapped || prev == hash {
		return hash, metahash.Zero, nil
	}
	if !keepOld && !s.dotrainReferencedLocked(prev) {
		delete(s.cache, prev)
	}
	return hash, prev, nil
}

// DeleteDotrain forgets uri. Its cached meta is evicted too unless keepCache
// is set or another uri still maps to it.
func (s *Store) DeleteDotrain(uri string, keepCache bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.dotrainCache[uri]
	if !ok {
		return
	}
	delete(s.dotrainCache, uri)
	if !keepCache && !s.dotrainReferencedLocked(h) {
		delete(s.cache, h)
	}
}

func (s *Store) dotrainReferencedLocked(h metahash.Hash) bool {
	for _, have := range s.dotrainCache {
		if have == h {
			return true
		}
	}
	return false
}

// GetDotrainHash returns the hash uri maps to.
func (s *Store) GetDotrainHash(uri string) (metahash.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.dotrainCache[uri]
	return h, ok
}

// GetDotrainMeta returns the cached dotrain meta for uri, or nil.
func (s *Store) GetDotrainMeta(uri string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.dotrainCache[uri]
	if !ok {
		return nil
	}
	return bytes.Clone(s.cache[h])
}
