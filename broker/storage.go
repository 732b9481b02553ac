package broker

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/xid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MetaStorage persists and recovers a full MetaStore snapshot. It is the
// opaque collaborator: the store itself never knows how or where its
// snapshots land on disk.
type MetaStorage interface {
	Save(snap *meta.Snapshot) error
	Load() (*meta.Snapshot, error)
}

// FileMetaStorage implements MetaStorage with an atomic-rename recipe:
// encode to a tie-broken temp sibling, flush, close, then os.Rename over
// the real path, so a crash mid-write never corrupts the last good
// snapshot.
type FileMetaStorage struct {
	Path string
}

func NewFileMetaStorage(path string) *FileMetaStorage {
	return &FileMetaStorage{Path: path}
}

func (f *FileMetaStorage) Save(snap *meta.Snapshot) (err error) {
	tmp := f.Path + ".tmp." + xid.Tie()
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create temp meta file %s", tmp)
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				err = errors.Wrapf(err, "also failed to remove temp file %s: %v", tmp, rmErr)
			}
		}
	}()

	enc := json.NewEncoder(file)
	if err = enc.Encode(snap); err != nil {
		file.Close()
		return errors.Wrapf(err, "encode meta snapshot")
	}
	if err = file.Sync(); err != nil {
		file.Close()
		return errors.Wrapf(err, "sync temp meta file %s", tmp)
	}
	if err = file.Close(); err != nil {
		return errors.Wrapf(err, "close temp meta file %s", tmp)
	}
	if err = os.Rename(tmp, f.Path); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmp, f.Path)
	}
	return nil
}

func (f *FileMetaStorage) Load() (*meta.Snapshot, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	snap := &meta.Snapshot{}
	if err := json.NewDecoder(file).Decode(snap); err != nil {
		return nil, errors.Wrapf(err, "decode meta file %s", f.Path)
	}
	return snap, nil
}
