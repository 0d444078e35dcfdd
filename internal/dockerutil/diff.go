package dockerutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/sirupsen/logrus"
)

// Name of the manifest listing paths removed from the base image.
const deletionsManifest = "deleted.txt"

// CreateDiffImage derives newImage from baseImage by applying the environment
// diff stored at diffPath, either a directory or a tar archive. Files in the
// diff are copied over the base image's filesystem and paths listed in its
// deletions manifest are removed.
func CreateDiffImage(ctx context.Context, cli *client.Client, baseImage, newImage, diffPath string) error {
	diffDir, cleanup, err := resolveDiffDir(diffPath)
	if err != nil {
		return err
	}
	defer cleanup()

	createRes, err := cli.ContainerCreate(ctx, &container.Config{
		Image: baseImage,
		// Keep the container alive until we committed it
		Cmd:    []string{"sleep", "infinity"},
		Labels: map[string]string{ownedLabel: "1"},
	}, nil, nil, nil, "")
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't create container from %s", baseImage), err)
	}
	containerID := createRes.ID
	defer func() {
		if err := cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			logrus.Warnf("Couldn't remove diff container %s - %v", containerID, err)
		}
	}()

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return errors.Join(fmt.Errorf("couldn't start container %s", containerID), err)
	}

	if err := copyDiffTree(ctx, cli, containerID, diffDir); err != nil {
		return err
	}
	if err := applyDeletions(ctx, cli, containerID, diffDir); err != nil {
		return err
	}

	if _, err := cli.ContainerCommit(ctx, containerID, container.CommitOptions{Reference: newImage}); err != nil {
		return errors.Join(fmt.Errorf("couldn't commit %s", newImage), err)
	}

	return nil
}

// resolveDiffDir makes sure the diff is available as a directory, extracting
// archived diffs into a temporary one.
func resolveDiffDir(diffPath string) (string, func(), error) {
	stat, err := os.Stat(diffPath)
	if err != nil {
		return "", nil, errors.Join(fmt.Errorf("couldn't stat environment diff %s", diffPath), err)
	}
	if stat.IsDir() {
		return diffPath, func() {}, nil
	}

	extracted, err := os.MkdirTemp("", "")
	if err != nil {
		return "", nil, err
	}
	archiveFile, err := os.Open(diffPath)
	if err != nil {
		os.RemoveAll(extracted)
		return "", nil, err
	}
	defer archiveFile.Close()
	// Untar decompresses the stream itself, so gzipped diffs work too
	if err := archive.Untar(archiveFile, extracted, &archive.TarOptions{}); err != nil {
		os.RemoveAll(extracted)
		return "", nil, errors.Join(fmt.Errorf("couldn't extract environment diff %s", diffPath), err)
	}
	return extracted, func() { os.RemoveAll(extracted) }, nil
}

// copyDiffTree copies the diff's file tree over the container's root
// filesystem. The deletions manifest is not part of the tree.
func copyDiffTree(ctx context.Context, cli *client.Client, containerID, diffDir string) error {
	tree, err := archive.TarWithOptions(diffDir, &archive.TarOptions{
		ExcludePatterns: []string{deletionsManifest},
	})
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't tar environment diff %s", diffDir), err)
	}
	defer tree.Close()

	if err := cli.CopyToContainer(ctx, containerID, "/", tree, types.CopyToContainerOptions{}); err != nil {
		return errors.Join(fmt.Errorf("couldn't copy environment diff into container %s", containerID), err)
	}
	return nil
}

// applyDeletions removes every path the diff's manifest lists, one per line.
// A missing manifest means nothing was deleted.
func applyDeletions(ctx context.Context, cli *client.Client, containerID, diffDir string) error {
	manifest, err := os.Open(filepath.Join(diffDir, deletionsManifest))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	defer manifest.Close()

	scanner := bufio.NewScanner(manifest)
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		execRes, err := cli.ContainerExecCreate(ctx, containerID, types.ExecConfig{
			Cmd: []string{"rm", "-rf", path},
		})
		if err != nil {
			return errors.Join(fmt.Errorf("couldn't delete %s in container %s", path, containerID), err)
		}
		if err := cli.ContainerExecStart(ctx, execRes.ID, types.ExecStartCheck{}); err != nil {
			return errors.Join(fmt.Errorf("couldn't delete %s in container %s", path, containerID), err)
		}
	}
	return scanner.Err()
}
